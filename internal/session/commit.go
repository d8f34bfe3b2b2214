package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// Committer performs the actual write of validated rows. It must write all
// records or none and returns how many it wrote.
type Committer interface {
	Commit(ctx context.Context, session domain.ImportSession, records []domain.NormalizedRecord) (int, error)
}

// CommitResult summarizes a finished commit.
type CommitResult struct {
	Session        domain.ImportSession `json:"session"`
	CommittedCount int                  `json:"committedCount"`
	ExcludedCount  int                  `json:"excludedCount"`
}

// CommitSession re-evaluates the session's rows, hands the valid ones to the
// committer and marks the session committed. Only one caller can hold the
// commit claim; everyone else gets a state error.
func (s *Service) CommitSession(ctx context.Context, id uuid.UUID) (CommitResult, error) {
	if s.committer == nil {
		return CommitResult{}, errors.New("no committer configured")
	}
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return CommitResult{}, err
	}
	if err := session.CommitReady(); err != nil {
		return CommitResult{}, err
	}

	claimed, err := s.sessions.ClaimCommit(ctx, id, session.MappingRevision)
	if err != nil {
		return CommitResult{}, s.explainConflict(ctx, id, err, "commit")
	}
	log := s.sessionLog(claimed).WithField("revision", claimed.MappingRevision)
	if claimed.CommitClaimedAt == nil {
		return CommitResult{}, errors.Errorf("session %s: claim not recorded", id)
	}
	claimedAt := *claimed.CommitClaimedAt

	handedOff := false
	defer func() {
		if handedOff {
			return
		}
		if releaseErr := s.sessions.ReleaseCommit(context.WithoutCancel(ctx), id, claimedAt); releaseErr != nil {
			log.WithError(releaseErr).Error("failed to release commit claim")
		}
	}()

	table, err := s.sources.Get(ctx, id)
	if err != nil {
		return CommitResult{}, err
	}

	started := time.Now()
	outcomes, err := s.evaluate(ctx, claimed, table)
	if err != nil {
		return CommitResult{}, err
	}
	s.metrics.previewLatency.WithLabelValues("commit").Observe(time.Since(started).Seconds())

	records := make([]domain.NormalizedRecord, 0, len(outcomes))
	excluded := make([]domain.ImportLogEntry, 0)
	for _, outcome := range outcomes {
		if outcome.Valid() && outcome.Record != nil {
			records = append(records, *outcome.Record)
			continue
		}
		excluded = append(excluded, excludedEntry(claimed, outcome))
	}
	if len(records) == 0 {
		return CommitResult{}, errors.Wrapf(domain.ErrNoValidRows, "session %s", id)
	}

	committed, err := s.committer.Commit(ctx, claimed, records)
	if err != nil {
		return CommitResult{}, fmt.Errorf("failed to commit rows: %w", err)
	}
	// The rows are written; releasing the claim now would allow a second write.
	handedOff = true

	persist := context.WithoutCancel(ctx)
	if len(excluded) > 0 {
		if err := s.importLog.Record(persist, excluded); err != nil {
			log.WithError(err).WithField("excluded", len(excluded)).Warn("failed to record excluded rows")
		}
	}

	done, err := s.sessions.CompleteCommit(persist, id, claimedAt, committed)
	if err != nil {
		log.WithError(err).WithField("committed", committed).Error("rows written but session not marked committed")
		return CommitResult{}, fmt.Errorf("failed to complete commit: %w", err)
	}
	if err := s.sources.Delete(persist, id); err != nil {
		log.WithError(err).Warn("failed to drop source table")
	}

	s.metrics.transitionsTotal.WithLabelValues(string(domain.SessionStatusCommitted)).Inc()
	s.metrics.rowsTotal.WithLabelValues("commit", string(domain.ValidationValid)).Add(float64(committed))
	s.metrics.rowsTotal.WithLabelValues("commit", string(domain.ValidationInvalid)).Add(float64(len(excluded)))
	s.sessionLog(done).WithFields(logrus.Fields{
		"committed": committed,
		"excluded":  len(excluded),
	}).Info("import session committed")

	return CommitResult{Session: done, CommittedCount: committed, ExcludedCount: len(excluded)}, nil
}

// ImportLog lists the rows excluded when a session was committed.
func (s *Service) ImportLog(ctx context.Context, id uuid.UUID, limit, offset int) ([]domain.ImportLogEntry, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.importLog.ListBySession(ctx, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list import log: %w", err)
	}
	return entries, nil
}

func excludedEntry(session domain.ImportSession, outcome domain.RowOutcome) domain.ImportLogEntry {
	rowNumber := outcome.RowNumber
	message := strings.Join(outcome.ValidationErrors, "; ")
	if message == "" {
		message = "row excluded"
	}
	return domain.ImportLogEntry{
		ID:           uuid.New(),
		SessionID:    session.ID,
		EmployerID:   session.EmployerID,
		FileName:     session.FileName,
		RowNumber:    &rowNumber,
		ErrorMessage: message,
		CreatedAt:    time.Now().UTC(),
	}
}
