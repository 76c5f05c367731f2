package shared

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"app_reviews/internal/domain"
)

// Targets file validation errors.
var (
	ErrNoTargets        = errors.New("at least one target is required")
	ErrTargetMissingID  = errors.New("app_id is required")
	ErrTargetBadSource  = errors.New("source must be 'google' or 'apple'")
	ErrTargetBadFormat  = errors.New("formats must be 'csv' or 'xlsx'")
	ErrTargetBadMax     = errors.New("max_count must be non-negative")
	ErrTargetBadSince   = errors.New("since must be YYYY-MM-DD")
	ErrTargetsDuplicate = errors.New("duplicate source/app_id pair")
)

// TargetsFile is the ingestor's YAML input.
type TargetsFile struct {
	Targets []Target `yaml:"targets"`
}

// Target is one app to ingest. Zero values fall back to Config defaults.
// Targets sharing a Group are one product listed in both stores; they run
// one after another instead of in parallel.
type Target struct {
	Group    string   `yaml:"group"`
	Source   string   `yaml:"source"`
	AppID    string   `yaml:"app_id"`
	Country  string   `yaml:"country"`
	Lang     string   `yaml:"lang"`
	MaxCount int      `yaml:"max_count"`
	Since    string   `yaml:"since"`
	Formats  []string `yaml:"formats"`
}

// LoadTargets reads and validates a targets file.
func LoadTargets(path string) (*TargetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	return ParseTargets(data)
}

func ParseTargets(data []byte) (*TargetsFile, error) {
	var tf TargetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse targets YAML: %w", err)
	}
	if err := tf.Validate(); err != nil {
		return nil, fmt.Errorf("targets validation failed: %w", err)
	}
	return &tf, nil
}

func (tf *TargetsFile) Validate() error {
	if len(tf.Targets) == 0 {
		return ErrNoTargets
	}
	seen := make(map[string]int, len(tf.Targets))
	for i, t := range tf.Targets {
		src, err := domain.ParseSource(t.Source)
		if err != nil {
			return fmt.Errorf("%w: targets[%d]", ErrTargetBadSource, i)
		}
		if t.AppID == "" {
			return fmt.Errorf("%w: targets[%d]", ErrTargetMissingID, i)
		}
		if t.MaxCount < 0 {
			return fmt.Errorf("%w: targets[%d]", ErrTargetBadMax, i)
		}
		if t.Since != "" {
			if _, err := time.Parse("2006-01-02", t.Since); err != nil {
				return fmt.Errorf("%w: targets[%d]", ErrTargetBadSince, i)
			}
		}
		for _, f := range t.Formats {
			if _, err := domain.ParseExportFormat(f); err != nil {
				return fmt.Errorf("%w: targets[%d]", ErrTargetBadFormat, i)
			}
		}
		key := string(src) + "/" + t.AppID
		if j, ok := seen[key]; ok {
			return fmt.Errorf("%w: targets[%d] and targets[%d]", ErrTargetsDuplicate, j, i)
		}
		seen[key] = i
	}
	return nil
}

// Groups splits the targets into ingestion units in file order. An empty
// Group is a unit of its own. Inside a unit Google runs before Apple.
func (tf *TargetsFile) Groups() [][]Target {
	var out [][]Target
	at := map[string]int{}
	for _, t := range tf.Targets {
		if t.Group == "" {
			out = append(out, []Target{t})
			continue
		}
		if i, ok := at[t.Group]; ok {
			out[i] = append(out[i], t)
			continue
		}
		at[t.Group] = len(out)
		out = append(out, []Target{t})
	}
	for _, g := range out {
		sort.SliceStable(g, func(i, j int) bool {
			return g[i].Source == string(domain.SourceGoogle) && g[j].Source != string(domain.SourceGoogle)
		})
	}
	return out
}

// RunConfig resolves a validated target against the defaults. The since date
// is midnight in loc.
func (t Target) RunConfig(c Config, loc *time.Location) domain.RunConfig {
	src, _ := domain.ParseSource(t.Source)
	rc := domain.RunConfig{
		Source:   src,
		AppID:    t.AppID,
		Lang:     or(t.Lang, c.DefaultLang),
		Country:  or(t.Country, c.DefaultCountry),
		MaxCount: t.MaxCount,
		Format:   domain.FormatCSV,
	}
	if rc.MaxCount == 0 {
		rc.MaxCount = c.DefaultMaxCount
	}
	if t.Since != "" {
		if d, err := time.ParseInLocation("2006-01-02", t.Since, loc); err == nil {
			rc.Since = &d
		}
	}
	if fs := t.ExportFormats(); len(fs) > 0 {
		rc.Format = fs[0]
	}
	return rc
}

// ExportFormats defaults to csv when the target lists none.
func (t Target) ExportFormats() []domain.ExportFormat {
	if len(t.Formats) == 0 {
		return []domain.ExportFormat{domain.FormatCSV}
	}
	out := make([]domain.ExportFormat, 0, len(t.Formats))
	for _, f := range t.Formats {
		if ef, err := domain.ParseExportFormat(f); err == nil {
			out = append(out, ef)
		}
	}
	return out
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
