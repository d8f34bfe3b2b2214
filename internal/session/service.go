// Package session orchestrates import sessions: detection, mapping,
// preview and commit.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/auth"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/detection"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/mapping"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/matching"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/repository"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/sourcestore"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/validation"
)

// Config tunes the session service.
type Config struct {
	SampleSize         int
	AutoApplyThreshold float64
	PreviewLimit       int
	PreviewWorkers     int
	MaxHours           float64
	Matching           matching.Policy
	// LoaderWait is how long employee-id lookups wait to be batched.
	LoaderWait time.Duration
	// LoaderBatchSize caps one employee-id batch; zero is unbounded.
	LoaderBatchSize int
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		SampleSize:         detection.DefaultSampleSize,
		AutoApplyThreshold: mapping.DefaultAutoApplyThreshold,
		PreviewLimit:       50,
		PreviewWorkers:     8,
		MaxHours:           validation.DefaultMaxHours,
		Matching:           matching.DefaultPolicy(),
		LoaderWait:         2 * time.Millisecond,
		LoaderBatchSize:    500,
	}
}

// Dependencies are the collaborators a Service needs.
type Dependencies struct {
	Sessions  repository.ImportSessionRepository
	Templates repository.TemplateRepository
	ImportLog repository.ImportLogRepository
	Directory repository.EmployeeDirectory
	Sources   sourcestore.Store
	Committer Committer
	Logger    *logrus.Logger
}

// Service is the stateful import orchestrator. All state lives in its
// repositories, so one Service may serve concurrent requests.
type Service struct {
	sessions  repository.ImportSessionRepository
	templates repository.TemplateRepository
	importLog repository.ImportLogRepository
	directory repository.EmployeeDirectory
	sources   sourcestore.Store
	committer Committer

	detector  *detection.Detector
	resolver  *mapping.Resolver
	matcher   *matching.Matcher
	validator *validation.Validator

	cfg     Config
	log     *logrus.Entry
	metrics *metrics
}

// NewService wires a session service.
func NewService(deps Dependencies, cfg Config) *Service {
	defaults := DefaultConfig()
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = defaults.PreviewLimit
	}
	if cfg.PreviewWorkers <= 0 {
		cfg.PreviewWorkers = defaults.PreviewWorkers
	}
	if cfg.Matching == (matching.Policy{}) {
		cfg.Matching = defaults.Matching
	}
	if cfg.LoaderWait <= 0 {
		cfg.LoaderWait = defaults.LoaderWait
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Service{
		sessions:  deps.Sessions,
		templates: deps.Templates,
		importLog: deps.ImportLog,
		directory: deps.Directory,
		sources:   deps.Sources,
		committer: deps.Committer,
		detector:  detection.NewDetector(cfg.SampleSize),
		resolver:  mapping.NewResolver(cfg.AutoApplyThreshold),
		matcher:   matching.NewMatcher(deps.Directory, matching.LevenshteinSimilarity{}, cfg.Matching),
		validator: validation.NewValidator(cfg.MaxHours),
		cfg:       cfg,
		log:       logger.WithField("component", "session"),
		metrics:   getMetrics(),
	}
}

// Detector exposes the configured column detector.
func (s *Service) Detector() *detection.Detector {
	return s.detector
}

// InitSession detects the table's columns, persists a new session and stores
// the table for later previews.
func (s *Service) InitSession(ctx context.Context, employerID uuid.UUID, table domain.Table, fileName string) (domain.ImportSession, error) {
	if err := auth.EnforceEmployerScope(ctx, employerID); err != nil {
		return domain.ImportSession{}, err
	}
	if err := table.Validate(); err != nil {
		s.metrics.sessionsTotal.WithLabelValues("rejected").Inc()
		return domain.ImportSession{}, err
	}

	columns := s.detector.Detect(table)
	session := domain.NewImportSession(employerID, strings.TrimSpace(fileName), len(table.Rows), columns)

	created, err := s.sessions.Create(ctx, session)
	if err != nil {
		s.metrics.sessionsTotal.WithLabelValues("error").Inc()
		return domain.ImportSession{}, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.sources.Put(ctx, created.ID, table); err != nil {
		if _, abortErr := s.sessions.Abort(context.WithoutCancel(ctx), created.ID); abortErr != nil {
			s.log.WithError(abortErr).WithField("session_id", created.ID).Warn("failed to abort session after source store failure")
		}
		s.metrics.sessionsTotal.WithLabelValues("error").Inc()
		return domain.ImportSession{}, fmt.Errorf("failed to store source table: %w", err)
	}

	s.metrics.sessionsTotal.WithLabelValues("created").Inc()
	s.metrics.transitionsTotal.WithLabelValues(string(domain.SessionStatusCreated)).Inc()
	s.sessionLog(created).WithFields(logrus.Fields{
		"rows":    created.RowCount,
		"columns": len(columns),
	}).Info("import session created")
	return created, nil
}

// GetSession returns a session visible to the caller's employer scope.
func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (domain.ImportSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return domain.ImportSession{}, err
	}
	if err := auth.EnforceEmployerScope(ctx, session.EmployerID); err != nil {
		return domain.ImportSession{}, err
	}
	return session, nil
}

// ResolveResult is a mapping suggestion plus its readiness.
type ResolveResult struct {
	mapping.Resolution
	Readiness mapping.Readiness `json:"readiness"`
}

// ResolveMapping suggests a mapping for the session's columns. It changes
// nothing.
func (s *Service) ResolveMapping(ctx context.Context, id uuid.UUID, templateID *uuid.UUID, overrides domain.FieldMapping) (ResolveResult, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return ResolveResult{}, err
	}

	var template *domain.MappingTemplate
	strategy := session.MatchStrategy
	if templateID != nil {
		loaded, err := s.GetTemplate(ctx, *templateID)
		if err != nil {
			return ResolveResult{}, err
		}
		if loaded.EmployerID != session.EmployerID {
			return ResolveResult{}, errors.Wrapf(domain.ErrScopeMismatch, "template %s", loaded.ID)
		}
		template = &loaded
		strategy = loaded.MatchStrategy
	}

	resolution := s.resolver.Resolve(session.DetectedColumns, template, overrides)
	return ResolveResult{
		Resolution: resolution,
		Readiness:  mapping.CheckReadiness(resolution.Mapping, strategy),
	}, nil
}

// SaveMapping replaces the session's mapping and strategy. Columns left out
// of mapping are stored as ignore.
func (s *Service) SaveMapping(ctx context.Context, id uuid.UUID, fieldMapping domain.FieldMapping, strategy domain.MatchStrategy) (domain.ImportSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return domain.ImportSession{}, err
	}
	if !strategy.IsValid() {
		return domain.ImportSession{}, errors.Wrapf(domain.ErrInvalidMapping, "unknown match strategy %q", strategy)
	}
	if err := mapping.ValidateMapping(session.DetectedColumns, fieldMapping); err != nil {
		return domain.ImportSession{}, err
	}

	complete := make(domain.FieldMapping, len(session.DetectedColumns))
	for _, column := range session.DetectedColumns {
		field, ok := fieldMapping[column.Name]
		if !ok {
			field = domain.FieldIgnore
		}
		complete[column.Name] = field
	}

	next, err := session.WithMapping(complete, strategy)
	if err != nil {
		return domain.ImportSession{}, err
	}
	if next.MappingRevision == session.MappingRevision {
		return session, nil
	}

	saved, err := s.sessions.SaveMapping(ctx, next, session.MappingRevision)
	if err != nil {
		return domain.ImportSession{}, s.explainConflict(ctx, id, err, "save mapping")
	}

	if session.Status != saved.Status {
		s.metrics.transitionsTotal.WithLabelValues(string(saved.Status)).Inc()
	}
	s.sessionLog(saved).WithFields(logrus.Fields{
		"revision": saved.MappingRevision,
		"strategy": saved.MatchStrategy,
	}).Info("import mapping saved")
	return saved, nil
}

// ApplyTemplate resolves the session against a template and saves the
// result with the template's strategy.
func (s *Service) ApplyTemplate(ctx context.Context, id uuid.UUID, templateID uuid.UUID) (domain.ImportSession, ResolveResult, error) {
	resolved, err := s.ResolveMapping(ctx, id, &templateID, nil)
	if err != nil {
		return domain.ImportSession{}, ResolveResult{}, err
	}
	template, err := s.GetTemplate(ctx, templateID)
	if err != nil {
		return domain.ImportSession{}, ResolveResult{}, err
	}
	saved, err := s.SaveMapping(ctx, id, resolved.Mapping, template.MatchStrategy)
	if err != nil {
		return domain.ImportSession{}, ResolveResult{}, err
	}
	return saved, resolved, nil
}

// AbortSession ends a non-terminal, unclaimed session and drops its stored
// table.
func (s *Service) AbortSession(ctx context.Context, id uuid.UUID) (domain.ImportSession, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return domain.ImportSession{}, err
	}
	if err := session.CheckTransition(domain.SessionStatusAborted); err != nil {
		return domain.ImportSession{}, err
	}
	if session.CommitClaimedAt != nil {
		return domain.ImportSession{}, errors.Wrapf(domain.ErrCommitInProgress, "session %s", id)
	}

	aborted, err := s.sessions.Abort(ctx, id)
	if err != nil {
		return domain.ImportSession{}, s.explainConflict(ctx, id, err, "abort")
	}
	if err := s.sources.Delete(ctx, id); err != nil {
		s.sessionLog(aborted).WithError(err).Warn("failed to drop source table")
	}

	s.metrics.transitionsTotal.WithLabelValues(string(domain.SessionStatusAborted)).Inc()
	s.sessionLog(aborted).Info("import session aborted")
	return aborted, nil
}

// explainConflict turns a lost compare-and-set into the state error that
// describes the session as it is now.
func (s *Service) explainConflict(ctx context.Context, id uuid.UUID, err error, action string) error {
	if !errors.Is(err, repository.ErrConflict) {
		return err
	}
	current, getErr := s.sessions.GetByID(ctx, id)
	if getErr != nil {
		return getErr
	}
	switch {
	case current.Status.IsTerminal():
		return errors.Wrapf(domain.ErrSessionTerminal, "session %s is %s", id, current.Status)
	case current.CommitClaimedAt != nil:
		return errors.Wrapf(domain.ErrCommitInProgress, "session %s", id)
	default:
		return errors.Wrapf(domain.ErrInvalidTransition, "%s: session %s changed concurrently", action, id)
	}
}

func (s *Service) sessionLog(session domain.ImportSession) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"employer_id": session.EmployerID,
		"status":      session.Status,
	})
}
