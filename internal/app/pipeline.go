package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"app_reviews/internal/adapters/observability"
	"app_reviews/internal/domain"
	"app_reviews/internal/export"
)

// Pipeline runs fetch -> normalize -> export for one source at a time.
// It keeps no state between runs; every call recomputes from the stores.
type Pipeline struct {
	google domain.GooglePlayClient
	apple  domain.AppStoreClient
	norm   *Normalizer
}

func NewPipeline(g domain.GooglePlayClient, a domain.AppStoreClient, n *Normalizer) *Pipeline {
	return &Pipeline{google: g, apple: a, norm: n}
}

func (p *Pipeline) Normalizer() *Normalizer { return p.norm }

// Fetch returns at most cfg.MaxCount raw records, newest first.
func (p *Pipeline) Fetch(ctx context.Context, cfg domain.RunConfig) ([]domain.RawReview, error) {
	switch cfg.Source {
	case domain.SourceGoogle:
		raw, err := p.google.ReviewsAll(ctx, cfg.AppID, cfg.Lang, cfg.Country, domain.SortNewest)
		if err != nil {
			return nil, err
		}
		// the store has no count control; keep a prefix
		if cfg.MaxCount >= 0 && len(raw) > cfg.MaxCount {
			raw = raw[:cfg.MaxCount]
		}
		return raw, nil
	case domain.SourceApple:
		return p.apple.Reviews(ctx, cfg.AppID, cfg.Country, cfg.MaxCount)
	}
	return nil, domain.ErrUnknownSource
}

// Normalize maps, filters and de-duplicates one raw batch.
func (p *Pipeline) Normalize(raw []domain.RawReview, cfg domain.RunConfig) []domain.Review {
	rows := p.norm.Map(cfg.Source, raw)
	observability.ObserveRows(string(cfg.Source), "normalized", len(rows))
	rows = Dedupe(FilterSince(rows, cfg.Since))
	observability.ObserveRows(string(cfg.Source), "kept", len(rows))
	return rows
}

// Run executes one source inside its own failure boundary. Errors are
// reported in the result, never returned or raised.
func (p *Pipeline) Run(ctx context.Context, cfg domain.RunConfig) (res domain.RunResult) {
	res = domain.RunResult{Source: cfg.Source, AppID: cfg.AppID}
	l := log.With().Str("source", string(cfg.Source)).Str("app_id", cfg.AppID).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			res.Rows = nil
			res.Err = fmt.Errorf("%s pipeline panic: %v", cfg.Source, rec)
			res.Message = Message(cfg, res.Err)
			observability.ObserveRun(string(cfg.Source), "error")
			l.Error().Interface("panic", rec).Msg("pipeline panic recovered")
		}
	}()

	raw, err := p.Fetch(ctx, cfg)
	if err != nil {
		res.Err = err
		res.Message = Message(cfg, err)
		outcome := "error"
		if errors.Is(err, domain.ErrNotFound) {
			outcome = "not_found"
		}
		observability.ObserveRun(string(cfg.Source), outcome)
		l.Warn().Err(err).Msg("fetch failed")
		return res
	}
	observability.ObserveRows(string(cfg.Source), "fetched", len(raw))

	res.Rows = p.Normalize(raw, cfg)
	res.Distribution = Distribution(res.Rows)
	if len(res.Rows) == 0 {
		res.Message = Message(cfg, domain.ErrNoReviews)
		observability.ObserveRun(string(cfg.Source), "empty")
		l.Info().Int("fetched", len(raw)).Msg("no reviews found")
		return res
	}
	res.Message = fmt.Sprintf("fetched %d reviews (max %d)", len(res.Rows), cfg.MaxCount)
	observability.ObserveRun(string(cfg.Source), "ok")
	l.Info().Int("fetched", len(raw)).Int("rows", len(res.Rows)).Msg("pipeline ok")
	return res
}

// RunAll runs each config in order; one failing source never hides the others.
func (p *Pipeline) RunAll(ctx context.Context, cfgs ...domain.RunConfig) []domain.RunResult {
	out := make([]domain.RunResult, 0, len(cfgs))
	for _, cfg := range cfgs {
		out = append(out, p.Run(ctx, cfg))
	}
	return out
}

// Export serializes a successful result. Empty or failed results are not exported.
func (p *Pipeline) Export(res domain.RunResult, f domain.ExportFormat) (*bytes.Reader, string, error) {
	if res.Err != nil {
		return nil, "", res.Err
	}
	if len(res.Rows) == 0 {
		return nil, "", domain.ErrNoReviews
	}
	r, err := export.Export(res.Source, res.Rows, f)
	if err != nil {
		return nil, "", err
	}
	return r, export.Filename(res.Source, f), nil
}

// Message renders a user-facing line for an outcome.
func Message(cfg domain.RunConfig, err error) string {
	var te *domain.TransportError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNoReviews):
		return domain.ErrNoReviews.Error()
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("Google Play app %q not found; check the app id", cfg.AppID)
	case errors.Is(err, domain.ErrInvalidAppID):
		return fmt.Sprintf("invalid %s app id %q", cfg.Source, cfg.AppID)
	case errors.As(err, &te):
		return fmt.Sprintf("failed to load %s reviews: %v", cfg.Source, te)
	default:
		return fmt.Sprintf("failed to load %s reviews: %v", cfg.Source, err)
	}
}
