package catalog

import (
	"sort"
	"strings"
	"unicode"
)

// Tokens lowercases s, splits it on anything that is not a letter or digit and
// returns the distinct tokens sorted.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// TokenSetRatio scores two strings in [0,100] by comparing their token sets:
// the sorted intersection against intersection+remainder of each side. Word
// order, case and repeated tokens do not matter. A non-empty intersection that
// covers one side completely scores 100.
func TokenSetRatio(a, b string) float64 {
	return tokenSetRatio(Tokens(a), Tokens(b))
}

func tokenSetRatio(ta, tb []string) float64 {
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inB := make(map[string]bool, len(tb))
	for _, t := range tb {
		inB[t] = true
	}
	inA := make(map[string]bool, len(ta))
	for _, t := range ta {
		inA[t] = true
	}

	var sect, diffAB, diffBA []string
	for _, t := range ta {
		if inB[t] {
			sect = append(sect, t)
		} else {
			diffAB = append(diffAB, t)
		}
	}
	for _, t := range tb {
		if !inA[t] {
			diffBA = append(diffBA, t)
		}
	}
	if len(sect) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}

	t0 := strings.Join(sect, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(diffAB, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(diffBA, " "))

	best := ratio(t1, t2)
	if t0 != "" {
		if r := ratio(t0, t1); r > best {
			best = r
		}
		if r := ratio(t0, t2); r > best {
			best = r
		}
	}
	return best
}

// ratio is the normalised indel similarity: 100 * 2*LCS / (len(a)+len(b)).
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return 100 * float64(2*lcs(ra, rb)) / float64(total)
}

// lcs returns the length of the longest common subsequence of a and b.
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
