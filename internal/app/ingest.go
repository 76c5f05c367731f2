package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"app_reviews/internal/domain"
	"app_reviews/internal/export"
)

// IngestionService runs the pipeline for configured targets and hands the
// results to delivery collaborators: the export store and the optional archive.
type IngestionService struct {
	pipe    *Pipeline
	store   domain.ExportStore
	archive domain.ReviewArchive
	ttl     time.Duration
}

func NewIngestionService(p *Pipeline, store domain.ExportStore, archive domain.ReviewArchive, ttl time.Duration) *IngestionService {
	return &IngestionService{pipe: p, store: store, archive: archive, ttl: ttl}
}

// Job is one target of a group: what to run and which formats to publish.
type Job struct {
	Config  domain.RunConfig
	Formats []domain.ExportFormat
}

// IngestTarget runs a single job. See IngestGroup for the error contract.
func (s *IngestionService) IngestTarget(ctx context.Context, runID string, cfg domain.RunConfig, formats []domain.ExportFormat) (domain.RunResult, error) {
	out, err := s.IngestGroup(ctx, runID, Job{Config: cfg, Formats: formats})
	return out[0], err
}

// IngestGroup runs the jobs one after another through Pipeline.RunAll, then
// delivers every result. One job failing never stops the others from being
// delivered; all delivery errors are joined. User-correctable misses (unknown
// or malformed app ids) and empty results are not errors.
func (s *IngestionService) IngestGroup(ctx context.Context, runID string, jobs ...Job) ([]domain.RunResult, error) {
	cfgs := make([]domain.RunConfig, len(jobs))
	for i, j := range jobs {
		cfgs[i] = j.Config
	}
	results := s.pipe.RunAll(ctx, cfgs...)

	var errs []error
	for i, res := range results {
		if err := s.deliver(ctx, runID, res, jobs[i].Formats); err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

func (s *IngestionService) deliver(ctx context.Context, runID string, res domain.RunResult, formats []domain.ExportFormat) error {
	if res.Err != nil {
		if errors.Is(res.Err, domain.ErrNotFound) || errors.Is(res.Err, domain.ErrInvalidAppID) {
			log.Warn().Str("source", string(res.Source)).Str("app_id", res.AppID).Msg(res.Message)
			s.logMiss(ctx, runID, res, res.Message)
			return nil
		}
		return res.Err
	}
	if len(res.Rows) == 0 {
		return nil
	}

	if s.store != nil {
		for _, f := range formats {
			if err := s.publish(ctx, res, f); err != nil {
				return err
			}
		}
	}

	if s.archive != nil {
		if err := s.archive.ArchiveReviews(ctx, runID, res.AppID, res.Rows); err != nil {
			// do not swallow this; surface so we know inserts failed
			return fmt.Errorf("archive %s reviews for %s: %w", res.Source, res.AppID, err)
		}
	}
	return nil
}

func (s *IngestionService) publish(ctx context.Context, res domain.RunResult, f domain.ExportFormat) error {
	r, _, err := s.pipe.Export(res, f)
	if err != nil {
		return err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	key := export.Key(res.Source, res.AppID, f)
	if err := s.store.Put(ctx, key, b, s.ttl); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	log.Info().Str("key", key).Int("bytes", len(b)).Msg("export published")
	return nil
}

// logMiss is best effort; a failed miss record never fails the target.
func (s *IngestionService) logMiss(ctx context.Context, runID string, res domain.RunResult, reason string) {
	if s.archive == nil {
		return
	}
	if err := s.archive.LogMiss(ctx, runID, res.Source, res.AppID, reason); err != nil {
		log.Warn().Err(err).Str("app_id", res.AppID).Msg("failed to record ingest miss")
	}
}
