package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"estimate-backend/internal/domain"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Loader supplies the entries of one catalog source.
type Loader interface {
	LoadCatalog(ctx context.Context, source string) ([]domain.RateCatalogEntry, error)
}

// rateValue decodes a rate written either as a number or a string.
type rateValue struct {
	decimal.Decimal
}

func (r *rateValue) UnmarshalYAML(n *yaml.Node) error {
	d, err := decimal.NewFromString(strings.TrimSpace(n.Value))
	if err != nil {
		return fmt.Errorf("rate %q: %w", n.Value, err)
	}
	r.Decimal = d
	return nil
}

type fileEntry struct {
	Code        string    `json:"code" yaml:"code"`
	Description string    `json:"description" yaml:"description"`
	Unit        string    `json:"unit" yaml:"unit"`
	Rate        rateValue `json:"rate" yaml:"rate"`
	Region      string    `json:"region" yaml:"region"`
	Year        int       `json:"year" yaml:"year"`
}

type fileCatalog struct {
	Source string      `json:"source" yaml:"source"`
	Region string      `json:"region" yaml:"region"`
	Year   int         `json:"year" yaml:"year"`
	Items  []fileEntry `json:"items" yaml:"items"`
}

// FileLoader reads catalogs from .json, .yaml or .yml files. The source
// argument is a file path.
type FileLoader struct{}

func (FileLoader) LoadCatalog(ctx context.Context, source string) ([]domain.RateCatalogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(source)
	if err != nil {
		return nil, err
	}
	var fc fileCatalog
	switch strings.ToLower(filepath.Ext(source)) {
	case ".json":
		err = json.Unmarshal(b, &fc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		return nil, fmt.Errorf("catalog %s: unsupported file type", source)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", source, err)
	}
	name := fc.Source
	if name == "" {
		name = SourceName(source)
	}

	seen := make(map[string]bool, len(fc.Items))
	out := make([]domain.RateCatalogEntry, 0, len(fc.Items))
	for _, it := range fc.Items {
		if it.Code == "" || seen[it.Code] {
			return nil, fmt.Errorf("catalog %s: missing or duplicate code %q", source, it.Code)
		}
		seen[it.Code] = true
		e := domain.RateCatalogEntry{
			Source:      name,
			Code:        it.Code,
			Description: it.Description,
			Unit:        it.Unit,
			Rate:        it.Rate.Decimal,
			Region:      it.Region,
			Year:        it.Year,
		}
		if e.Region == "" {
			e.Region = fc.Region
		}
		if e.Year == 0 {
			e.Year = fc.Year
		}
		out = append(out, e)
	}
	return out, nil
}

// DBScheme prefixes sources that are read from the database table instead of a file.
const DBScheme = "db:"

// SourceLoader dispatches "db:<source>" to DB and every other source to Files.
type SourceLoader struct {
	Files Loader
	DB    Loader
}

func (l SourceLoader) LoadCatalog(ctx context.Context, source string) ([]domain.RateCatalogEntry, error) {
	if name, ok := strings.CutPrefix(source, DBScheme); ok {
		if l.DB == nil {
			return nil, fmt.Errorf("catalog %s: no database configured", source)
		}
		return l.DB.LoadCatalog(ctx, name)
	}
	files := l.Files
	if files == nil {
		files = FileLoader{}
	}
	return files.LoadCatalog(ctx, source)
}

// SourceName derives a catalog name from a file path ("rates/dsr-2023.yaml" -> "dsr-2023").
func SourceName(path string) string {
	if name, ok := strings.CutPrefix(path, DBScheme); ok {
		return name
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadAll loads every source in order. A source that fails is logged and kept
// as an empty, unavailable catalog so searches still run against the rest.
func LoadAll(ctx context.Context, loader Loader, sources []string, logger zerolog.Logger) []*Catalog {
	out := make([]*Catalog, 0, len(sources))
	for _, src := range sources {
		entries, err := loader.LoadCatalog(ctx, src)
		if err != nil {
			logger.Warn().Err(err).Str("source", src).Msg("rate catalog unavailable")
			out = append(out, Unavailable(SourceName(src), err))
			continue
		}
		name := SourceName(src)
		if len(entries) > 0 && entries[0].Source != "" {
			name = entries[0].Source
		}
		logger.Info().Str("source", name).Int("entries", len(entries)).Msg("rate catalog loaded")
		out = append(out, New(name, entries))
	}
	return out
}
