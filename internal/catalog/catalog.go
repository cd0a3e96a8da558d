// Package catalog holds the read-only rate catalogs and answers approximate
// description lookups against them.
package catalog

import (
	"encoding/hex"
	"math"
	"sort"
	"strconv"
	"strings"

	"estimate-backend/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// DefaultThreshold is the minimum score a match must reach.
const DefaultThreshold = 70.0

// Match is one ranked search hit.
type Match struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Rate        decimal.Decimal `json:"rate"`
	Source      string          `json:"source"`
	Region      string          `json:"region,omitempty"`
	Year        int             `json:"year,omitempty"`
	Score       float64         `json:"score"`
	Rank        int             `json:"rank"`
}

type indexedEntry struct {
	entry  domain.RateCatalogEntry
	tokens []string
}

// Catalog is an immutable snapshot of one source's entries.
type Catalog struct {
	source      string
	entries     []indexedEntry
	fingerprint string
	// loadErr is set when the source could not be loaded; the catalog is then empty.
	loadErr error
}

// New builds a catalog snapshot. Entries are copied and tokenised once.
func New(source string, entries []domain.RateCatalogEntry) *Catalog {
	c := &Catalog{source: source, entries: make([]indexedEntry, 0, len(entries))}
	h, _ := blake2b.New256(nil)
	h.Write([]byte(source))
	for _, e := range entries {
		if e.Source == "" {
			e.Source = source
		}
		c.entries = append(c.entries, indexedEntry{entry: e, tokens: Tokens(e.Description)})
		h.Write([]byte{0})
		h.Write([]byte(e.Code))
		h.Write([]byte{0})
		h.Write([]byte(e.Description))
		h.Write([]byte{0})
		h.Write([]byte(e.Unit))
		h.Write([]byte{0})
		h.Write([]byte(e.Rate.String()))
	}
	c.fingerprint = hex.EncodeToString(h.Sum(nil))
	return c
}

// Unavailable returns an empty catalog that records why the source failed.
func Unavailable(source string, err error) *Catalog {
	c := New(source, nil)
	c.loadErr = err
	return c
}

func (c *Catalog) Source() string      { return c.source }
func (c *Catalog) Len() int            { return len(c.entries) }
func (c *Catalog) Fingerprint() string { return c.fingerprint }
func (c *Catalog) Err() error          { return c.loadErr }

// Search scores every entry against text and returns those at or above
// threshold, best first, ties by ascending code. A blank query matches nothing.
func (c *Catalog) Search(text string, threshold float64) []Match {
	query := Tokens(text)
	if len(query) == 0 || c == nil {
		return []Match{}
	}
	out := make([]Match, 0)
	for _, e := range c.entries {
		score := tokenSetRatio(query, e.tokens)
		if score < threshold {
			continue
		}
		out = append(out, Match{
			Code:        e.entry.Code,
			Description: e.entry.Description,
			Unit:        e.entry.Unit,
			Rate:        e.entry.Rate,
			Source:      e.entry.Source,
			Region:      e.entry.Region,
			Year:        e.entry.Year,
			Score:       math.Round(score*100) / 100,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return CompareCodes(out[i].Code, out[j].Code) < 0
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// CompareCodes orders dotted codes segment by segment, numerically where both
// segments are numbers ("2.10" sorts after "2.9").
func CompareCodes(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		x, errX := strconv.Atoi(as[i])
		y, errY := strconv.Atoi(bs[i])
		if errX == nil && errY == nil {
			if x != y {
				if x < y {
					return -1
				}
				return 1
			}
			continue
		}
		if c := strings.Compare(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}
