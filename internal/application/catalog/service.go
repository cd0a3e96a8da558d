package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	rc "estimate-backend/internal/catalog"
	"estimate-backend/internal/domain"
	"estimate-backend/internal/infrastructure/database"
	"estimate-backend/internal/observability"

	"github.com/rs/zerolog"
)

// Service answers rate lookups against the configured catalogs.
type Service struct {
	Registry  *rc.Registry
	Loader    rc.Loader
	Sources   []string
	Cache     *rc.Cache
	Store     *database.CatalogRepository
	Threshold float64
	Logger    zerolog.Logger
}

// SourceStatus reports how one source loaded on the last refresh.
type SourceStatus struct {
	Source  string `json:"source"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

func (s *Service) resolveThreshold(threshold *float64) (float64, error) {
	if threshold == nil {
		if s.Threshold > 0 {
			return s.Threshold, nil
		}
		return rc.DefaultThreshold, nil
	}
	if *threshold < 0 || *threshold > 100 {
		return 0, domain.Validation("threshold", "must be between 0 and 100")
	}
	return *threshold, nil
}

// SearchAll searches every catalog and returns the per-source sublists and
// the best match. Results are cached in Redis when a cache is configured.
func (s *Service) SearchAll(ctx context.Context, text string, threshold *float64) (rc.MultiResult, error) {
	t, err := s.resolveThreshold(threshold)
	if err != nil {
		return rc.MultiResult{}, err
	}
	start := time.Now()
	fp := s.Registry.Fingerprint()
	if cached, ok := s.Cache.Get(ctx, fp, text, t); ok {
		observability.RecordSearch(true, time.Since(start))
		return *cached, nil
	}
	res, err := s.Registry.SearchAll(ctx, text, t)
	if err != nil {
		return rc.MultiResult{}, err
	}
	observability.RecordSearch(false, time.Since(start))
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, fp, text, t, res); err != nil {
			s.Logger.Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	return res, nil
}

// SearchCatalog returns one ranked list merged across catalogs: score
// descending, then catalog priority, then code.
func (s *Service) SearchCatalog(ctx context.Context, text string, threshold *float64) ([]rc.Match, error) {
	res, err := s.SearchAll(ctx, text, threshold)
	if err != nil {
		return nil, err
	}
	return Merge(res), nil
}

// Merge flattens a multi-catalog result into one ranked list.
func Merge(res rc.MultiResult) []rc.Match {
	type ranked struct {
		m        rc.Match
		priority int
	}
	all := make([]ranked, 0)
	for p, sr := range res.Sources {
		for _, m := range sr.Matches {
			all = append(all, ranked{m: m, priority: p})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.m.Score != b.m.Score {
			return a.m.Score > b.m.Score
		}
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return rc.CompareCodes(a.m.Code, b.m.Code) < 0
	})
	out := make([]rc.Match, len(all))
	for i, r := range all {
		out[i] = r.m
		out[i].Rank = i + 1
	}
	return out
}

// BestMatch returns the single best entry across catalogs, or nil.
func (s *Service) BestMatch(ctx context.Context, text string) (*rc.Match, error) {
	res, err := s.SearchAll(ctx, text, nil)
	if err != nil {
		return nil, err
	}
	return res.BestMatch, nil
}

// Refresh reloads every configured source and swaps the new set in at once.
// A failing source is served as an empty catalog until the next refresh.
func (s *Service) Refresh(ctx context.Context) []SourceStatus {
	cats := rc.LoadAll(ctx, s.Loader, s.Sources, s.Logger)
	s.Registry.Replace(cats...)
	return s.Status()
}

// Status describes the catalogs currently served.
func (s *Service) Status() []SourceStatus {
	cats := s.Registry.Catalogs()
	out := make([]SourceStatus, 0, len(cats))
	for _, c := range cats {
		st := SourceStatus{Source: c.Source(), Entries: c.Len()}
		if c.Err() != nil {
			st.Error = c.Err().Error()
		}
		observability.CatalogEntries.WithLabelValues(c.Source()).Set(float64(c.Len()))
		out = append(out, st)
	}
	return out
}

// Import stores a catalog file in the database table and refreshes. Only
// sources listed as "db:<source>" are served from the table.
func (s *Service) Import(ctx context.Context, path string) (string, int64, error) {
	if s.Store == nil {
		return "", 0, fmt.Errorf("catalog import requires a database")
	}
	entries, err := rc.FileLoader{}.LoadCatalog(ctx, path)
	if err != nil {
		return "", 0, domain.Validation("path", err.Error())
	}
	if len(entries) == 0 {
		return "", 0, domain.Validation("path", fmt.Sprintf("catalog %s has no entries", path))
	}
	n, err := s.Store.Upsert(ctx, entries)
	if err != nil {
		return "", 0, err
	}
	source := entries[0].Source
	s.Logger.Info().Str("source", source).Int64("rows", n).Msg("rate catalog imported")
	s.Refresh(ctx)
	return source, n, nil
}
