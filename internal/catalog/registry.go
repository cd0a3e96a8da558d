package catalog

import (
	"context"
	"encoding/hex"
	"strings"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"
)

// SourceResult is the ranked sublist of one catalog.
type SourceResult struct {
	Source  string  `json:"source"`
	Matches []Match `json:"matches"`
	Error   string  `json:"error,omitempty"`
}

// MultiResult merges the per-catalog results of one query.
type MultiResult struct {
	Query     string         `json:"query"`
	Threshold float64        `json:"threshold"`
	Sources   []SourceResult `json:"sources"`
	BestMatch *Match         `json:"best_match"`
}

type snapshot struct {
	catalogs    []*Catalog
	fingerprint string
}

// Registry holds the configured catalogs in priority order. Readers never
// lock; Replace publishes a fully built set in one atomic swap.
type Registry struct {
	current atomic.Pointer[snapshot]
}

// NewRegistry returns a registry serving the given catalogs, highest priority first.
func NewRegistry(catalogs ...*Catalog) *Registry {
	r := &Registry{}
	r.Replace(catalogs...)
	return r
}

// Replace swaps in a new catalog set.
func (r *Registry) Replace(catalogs ...*Catalog) {
	cs := append([]*Catalog(nil), catalogs...)
	h, _ := blake2b.New256(nil)
	for _, c := range cs {
		h.Write([]byte(c.Fingerprint()))
	}
	r.current.Store(&snapshot{catalogs: cs, fingerprint: hex.EncodeToString(h.Sum(nil))})
}

// Catalogs returns the current catalogs in priority order.
func (r *Registry) Catalogs() []*Catalog {
	return append([]*Catalog(nil), r.load().catalogs...)
}

// Fingerprint identifies the current catalog set; it changes on every content change.
func (r *Registry) Fingerprint() string {
	return r.load().fingerprint
}

// Search runs a query against the highest-priority catalog only.
func (r *Registry) Search(text string, threshold float64) []Match {
	cs := r.load().catalogs
	if len(cs) == 0 {
		return []Match{}
	}
	return cs[0].Search(text, threshold)
}

// SearchAll searches every catalog concurrently and merges the sublists in
// priority order. BestMatch is the top score across catalogs; ties go to the
// higher-priority catalog, then the lower code.
func (r *Registry) SearchAll(ctx context.Context, text string, threshold float64) (MultiResult, error) {
	snap := r.load()
	res := MultiResult{Query: text, Threshold: threshold, Sources: make([]SourceResult, len(snap.catalogs))}
	if strings.TrimSpace(text) == "" {
		for i, c := range snap.catalogs {
			res.Sources[i] = SourceResult{Source: c.Source(), Matches: []Match{}}
		}
		return res, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range snap.catalogs {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sr := SourceResult{Source: c.Source(), Matches: c.Search(text, threshold)}
			if c.Err() != nil {
				sr.Error = c.Err().Error()
			}
			res.Sources[i] = sr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return MultiResult{}, err
	}

	for _, sr := range res.Sources {
		if len(sr.Matches) == 0 {
			continue
		}
		top := sr.Matches[0]
		if res.BestMatch == nil || top.Score > res.BestMatch.Score {
			m := top
			res.BestMatch = &m
		}
	}
	return res, nil
}

func (r *Registry) load() *snapshot {
	if s := r.current.Load(); s != nil {
		return s
	}
	return &snapshot{}
}
