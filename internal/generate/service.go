// Package generate runs the test-plan pipeline for one issue: fetch, gate,
// collect, aggregate, prompt, generate, validate. It is the request
// boundary; every failure leaving this package carries a stable Kind.
package generate

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/planbot/internal/aggregate"
	"github.com/planbot/internal/collect"
	"github.com/planbot/internal/jira"
	"github.com/planbot/internal/llm"
	"github.com/planbot/internal/plan"
	"github.com/planbot/internal/prompt"
	"github.com/planbot/pkg/models"
)

// DefaultCollectorTimeout bounds each optional collector when the config
// does not say otherwise.
const DefaultCollectorTimeout = 8 * time.Second

// IssueFetcher is the tracker dependency of the pipeline.
type IssueFetcher interface {
	FetchIssue(ctx context.Context, key string) (*models.Issue, error)
}

// AttachmentLoader downloads attachment bytes on the tracker credential so
// images can be sent to the model as inline data.
type AttachmentLoader interface {
	DownloadAttachment(ctx context.Context, url string) ([]byte, error)
}

// Request is one generation request. Development is optional precomputed
// activity; when set, the pipeline uses it instead of fetching its own.
type Request struct {
	IssueKey    string
	Testing     models.TestingContext
	Development *models.DevelopmentActivity
}

// Result is a generated plan plus what went into it.
type Result struct {
	Plan    *models.TestPlan
	Issue   *models.Issue
	Sources []string // collectors that contributed context
}

// Service wires the pipeline stages together.
type Service struct {
	Tracker          IssueFetcher
	Attachments      AttachmentLoader
	Collectors       []collect.Collector
	Gateway          llm.Gateway
	Aggregate        aggregate.Config
	CollectorTimeout time.Duration
}

// Generate produces a validated test plan for one issue. The issue-type
// gate runs before any optional collection or model call, so non-testable
// issues fail fast and cheap.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	issue, err := s.Tracker.FetchIssue(ctx, req.IssueKey)
	if err != nil {
		return nil, mapTrackerError(err, req.IssueKey)
	}

	if !issue.Type.Testable() {
		return nil, newError(KindNonTestableType, nil,
			"issue %s is a %s; test plans are generated only for Story, Bug, Task, Sub-task and Spike",
			issue.Key, issue.Type)
	}

	if issue.Quality != nil && issue.Quality.IsWeak {
		log.Info().Str("key", issue.Key).Strs("warnings", issue.Quality.Warnings).
			Msg("description quality is weak, relying on surrounding context")
	}

	timeout := s.CollectorTimeout
	if timeout <= 0 {
		timeout = DefaultCollectorTimeout
	}

	var partials []*models.PartialContext
	collectors := s.Collectors
	if req.Development != nil {
		// Caller-supplied activity wins; skip the collector that would
		// refetch it.
		partials = append(partials, &models.PartialContext{Development: req.Development})
		collectors = withoutCollector(collectors, collect.DevActivityName)
	}

	results := collect.RunAll(ctx, timeout, issue, collectors)
	for _, r := range results {
		// Optional-source failures were already logged; absence is fine.
		if r.Err == nil && r.Partial != nil {
			partials = append(partials, r.Partial)
		}
	}

	bundle := aggregate.Merge(*issue, req.Testing, partials, s.Aggregate)
	bundle.Images = s.loadImages(ctx, bundle.Images)

	payload, err := prompt.Build(bundle)
	if err != nil {
		return nil, newError(KindSchemaValidation, err, "failed to build prompt for %s", issue.Key)
	}

	raw, err := s.Gateway.Generate(ctx, payload)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, newError(KindCancelled, err, "generation for %s was cancelled", issue.Key)
		}
		return nil, newError(KindProviderUnavailable, err, "model backend failed for %s", issue.Key)
	}

	testPlan, err := plan.Parse(raw)
	if err != nil {
		var schemaErr *plan.SchemaError
		if errors.As(err, &schemaErr) {
			return nil, newError(KindSchemaValidation, err, "model output for %s failed validation", issue.Key)
		}
		return nil, newError(KindSchemaValidation, err, "model output for %s could not be parsed", issue.Key)
	}

	log.Info().Str("key", issue.Key).Str("provider", s.Gateway.Name()).
		Strs("sources", bundle.CollectorNotes).
		Int("happy_path", len(testPlan.HappyPath)).
		Int("edge_cases", len(testPlan.EdgeCases)).
		Dur("took", time.Since(started)).
		Msg("generated test plan")

	return &Result{Plan: testPlan, Issue: issue, Sources: bundle.CollectorNotes}, nil
}

// loadImages downloads the bytes of each selected image on the tracker
// credential. An image that cannot be fetched is dropped; image context is
// optional and never fails a generation.
func (s *Service) loadImages(ctx context.Context, images []models.Attachment) []models.Attachment {
	if s.Attachments == nil || len(images) == 0 {
		return nil
	}

	loaded := make([]models.Attachment, 0, len(images))
	for _, img := range images {
		data, err := s.Attachments.DownloadAttachment(ctx, img.URL)
		if err != nil {
			log.Warn().Err(err).Str("filename", img.Filename).Msg("attachment download failed, dropping image")
			continue
		}
		img.Data = data
		loaded = append(loaded, img)
	}
	return loaded
}

func withoutCollector(collectors []collect.Collector, name string) []collect.Collector {
	kept := make([]collect.Collector, 0, len(collectors))
	for _, col := range collectors {
		if col.Name() == name {
			continue
		}
		kept = append(kept, col)
	}
	return kept
}

// mapTrackerError converts tracker sentinels into the caller-facing
// taxonomy. The issue fetch is the one required source; its failures are
// never downgraded.
func mapTrackerError(err error, key string) *Error {
	switch {
	case errors.Is(err, jira.ErrNotFound):
		return newError(KindNotFound, err, "issue %s not found", key)
	case errors.Is(err, jira.ErrAuth):
		return newError(KindAuthFailure, err, "tracker rejected the configured credential")
	case errors.Is(err, jira.ErrForbidden):
		return newError(KindForbidden, err, "credential lacks permission to read %s", key)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(KindCancelled, err, "fetch of %s was cancelled", key)
	default:
		return newError(KindUnreachable, err, "tracker unreachable while fetching %s", key)
	}
}
