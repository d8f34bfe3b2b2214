package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/employeeloader"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/mapping"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/repository"
)

// MatchSummary counts matched rows per method and tier.
type MatchSummary struct {
	ByMethod     map[domain.MatchMethod]int    `json:"byMethod"`
	ByConfidence map[domain.ConfidenceTier]int `json:"byConfidence"`
	Unmatched    int                           `json:"unmatched"`
}

// PreviewResult is a dry run over every row of a session.
type PreviewResult struct {
	SessionID       uuid.UUID           `json:"sessionId"`
	MappingRevision int                 `json:"mappingRevision"`
	TotalRows       int                 `json:"totalRows"`
	SuccessCount    int                 `json:"successCount"`
	ErrorCount      int                 `json:"errorCount"`
	Rows            []domain.RowOutcome `json:"rows"`
	MatchSummary    MatchSummary        `json:"matchSummary"`
	Readiness       mapping.Readiness   `json:"readiness"`
	// Stale is set when the mapping changed while the preview ran; the
	// result was not recorded on the session.
	Stale       bool      `json:"stale"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// NotReadyError carries the readiness report of a mapping that cannot be
// previewed.
type NotReadyError struct {
	Readiness mapping.Readiness
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: missing %s", domain.ErrMappingNotReady, strings.Join(e.Readiness.Missing, ", "))
}

func (e *NotReadyError) Unwrap() error {
	return domain.ErrMappingNotReady
}

// GeneratePreview evaluates every row against the current mapping. A
// non-nil table must carry the same headers; it replaces the stored source
// once the preview is recorded. limit caps the returned sample; counts always
// cover every row.
func (s *Service) GeneratePreview(ctx context.Context, id uuid.UUID, table *domain.Table, limit int) (PreviewResult, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return PreviewResult{}, err
	}
	if err := session.CheckTransition(domain.SessionStatusPreviewed); err != nil {
		return PreviewResult{}, err
	}
	if session.CommitClaimedAt != nil {
		return PreviewResult{}, errors.Wrapf(domain.ErrCommitInProgress, "session %s", id)
	}

	readiness := mapping.CheckReadiness(session.ColumnMappings, session.MatchStrategy)
	if !readiness.Ready {
		return PreviewResult{}, &NotReadyError{Readiness: readiness}
	}

	source, err := s.sourceTable(ctx, session, table)
	if err != nil {
		return PreviewResult{}, err
	}

	if limit <= 0 {
		limit = s.cfg.PreviewLimit
	}

	started := time.Now()
	outcomes, err := s.evaluate(ctx, session, source)
	if err != nil {
		return PreviewResult{}, err
	}
	s.metrics.previewLatency.WithLabelValues("preview").Observe(time.Since(started).Seconds())

	result := PreviewResult{
		SessionID:       session.ID,
		MappingRevision: session.MappingRevision,
		TotalRows:       len(outcomes),
		Rows:            make([]domain.RowOutcome, 0, min(limit, len(outcomes))),
		MatchSummary: MatchSummary{
			ByMethod:     map[domain.MatchMethod]int{},
			ByConfidence: map[domain.ConfidenceTier]int{},
		},
		Readiness:   readiness,
		GeneratedAt: time.Now().UTC(),
	}
	for _, outcome := range outcomes {
		if outcome.Valid() {
			result.SuccessCount++
		} else {
			result.ErrorCount++
		}
		if outcome.MatchResult.Matched {
			result.MatchSummary.ByMethod[outcome.MatchResult.Method]++
			result.MatchSummary.ByConfidence[outcome.MatchResult.Confidence]++
			s.metrics.matchesTotal.WithLabelValues(string(outcome.MatchResult.Method), string(outcome.MatchResult.Confidence)).Inc()
		} else {
			result.MatchSummary.Unmatched++
		}
		if len(result.Rows) < limit {
			result.Rows = append(result.Rows, outcome)
		}
	}
	s.metrics.rowsTotal.WithLabelValues("preview", string(domain.ValidationValid)).Add(float64(result.SuccessCount))
	s.metrics.rowsTotal.WithLabelValues("preview", string(domain.ValidationInvalid)).Add(float64(result.ErrorCount))

	summary := domain.PreviewSummary{
		MappingRevision: session.MappingRevision,
		TotalRows:       result.TotalRows,
		SuccessCount:    result.SuccessCount,
		ErrorCount:      result.ErrorCount,
		GeneratedAt:     result.GeneratedAt,
	}
	recorded, err := s.sessions.RecordPreview(ctx, session.ID, summary)
	switch {
	case errors.Is(err, repository.ErrConflict):
		result.Stale = true
		s.sessionLog(session).WithField("revision", session.MappingRevision).Warn("preview finished after the mapping changed; not recorded")
	case err != nil:
		return PreviewResult{}, fmt.Errorf("failed to record preview: %w", err)
	default:
		if table != nil {
			if err := s.sources.Put(ctx, session.ID, source); err != nil {
				return PreviewResult{}, fmt.Errorf("failed to store re-supplied table: %w", err)
			}
		}
		if session.Status != recorded.Status {
			s.metrics.transitionsTotal.WithLabelValues(string(recorded.Status)).Inc()
		}
		s.sessionLog(recorded).WithFields(logrus.Fields{
			"revision": recorded.MappingRevision,
			"total":    result.TotalRows,
			"valid":    result.SuccessCount,
			"invalid":  result.ErrorCount,
		}).Info("import preview generated")
	}
	return result, nil
}

// sourceTable returns the validated re-supplied table, or the stored one.
func (s *Service) sourceTable(ctx context.Context, session domain.ImportSession, supplied *domain.Table) (domain.Table, error) {
	if supplied == nil {
		return s.sources.Get(ctx, session.ID)
	}
	if err := supplied.Validate(); err != nil {
		return domain.Table{}, err
	}
	if !domain.SameHeaders(supplied.Headers, session.ColumnNames()) {
		return domain.Table{}, errors.Wrapf(domain.ErrTableMismatch, "expected columns %s", strings.Join(session.ColumnNames(), ", "))
	}
	return *supplied, nil
}

// evaluate matches and validates every row on a bounded worker group. Results
// keep row order. Employee-id lookups issued during one run are batched.
func (s *Service) evaluate(ctx context.Context, session domain.ImportSession, table domain.Table) ([]domain.RowOutcome, error) {
	outcomes := make([]domain.RowOutcome, len(table.Rows))
	if len(table.Rows) == 0 {
		return outcomes, nil
	}

	directory := employeeloader.New(s.directory, session.EmployerID, s.cfg.LoaderWait, s.cfg.LoaderBatchSize)
	matcher := s.matcher.WithDirectory(directory)
	fieldMapping := session.ColumnMappings.Clone()
	strategy := session.MatchStrategy

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.PreviewWorkers)
	for i, row := range table.Rows {
		g.Go(func() error {
			mapped := domain.NewMappedRow(row, table.Headers, fieldMapping)
			match, err := matcher.Match(gctx, session.EmployerID, mapped, strategy)
			if err != nil {
				return fmt.Errorf("row %d: %w", row.Number, err)
			}
			verdict := s.validator.Validate(mapped, match)
			outcomes[i] = domain.RowOutcome{
				RowNumber:        row.Number,
				MappedData:       mapped,
				MatchResult:      match,
				ValidationStatus: verdict.Status,
				ValidationErrors: verdict.Errors,
				Record:           verdict.Record,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to evaluate rows: %w", err)
	}
	return outcomes, nil
}
