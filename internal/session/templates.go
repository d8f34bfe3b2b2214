package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/auth"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/mapping"
)

// SaveTemplate stores a new immutable template. Names need not be unique.
func (s *Service) SaveTemplate(ctx context.Context, employerID uuid.UUID, name string, fieldMapping domain.FieldMapping, strategy domain.MatchStrategy) (domain.MappingTemplate, error) {
	if err := auth.EnforceEmployerScope(ctx, employerID); err != nil {
		return domain.MappingTemplate{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.MappingTemplate{}, errors.Wrap(domain.ErrInvalidMapping, "template name is required")
	}
	if !strategy.IsValid() {
		return domain.MappingTemplate{}, errors.Wrapf(domain.ErrInvalidMapping, "unknown match strategy %q", strategy)
	}
	if err := mapping.ValidateMapping(columnsOf(fieldMapping), fieldMapping); err != nil {
		return domain.MappingTemplate{}, err
	}

	created, err := s.templates.Create(ctx, domain.NewMappingTemplate(employerID, name, fieldMapping, strategy))
	if err != nil {
		return domain.MappingTemplate{}, fmt.Errorf("failed to save template: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"template_id": created.ID,
		"employer_id": created.EmployerID,
		"name":        created.Name,
	}).Info("mapping template saved")
	return created, nil
}

// SaveTemplateFromSession snapshots a session's current mapping and strategy.
func (s *Service) SaveTemplateFromSession(ctx context.Context, sessionID uuid.UUID, name string) (domain.MappingTemplate, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return domain.MappingTemplate{}, err
	}
	if session.Status == domain.SessionStatusCreated {
		return domain.MappingTemplate{}, errors.Wrapf(domain.ErrInvalidTransition, "session %s has no saved mapping", sessionID)
	}
	return s.SaveTemplate(ctx, session.EmployerID, name, session.ColumnMappings, session.MatchStrategy)
}

// ListTemplates returns the employer's templates in creation order.
func (s *Service) ListTemplates(ctx context.Context, employerID uuid.UUID) ([]domain.MappingTemplate, error) {
	if err := auth.EnforceEmployerScope(ctx, employerID); err != nil {
		return nil, err
	}
	templates, err := s.templates.ListByEmployer(ctx, employerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// GetTemplate returns a template visible to the caller's employer scope.
func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (domain.MappingTemplate, error) {
	template, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return domain.MappingTemplate{}, err
	}
	if err := auth.EnforceEmployerScope(ctx, template.EmployerID); err != nil {
		return domain.MappingTemplate{}, err
	}
	return template, nil
}

// columnsOf treats a free-standing mapping's keys as its columns.
func columnsOf(fieldMapping domain.FieldMapping) []domain.DetectedColumn {
	names := fieldMapping.Columns()
	columns := make([]domain.DetectedColumn, len(names))
	for i, name := range names {
		columns[i] = domain.DetectedColumn{Name: name, Index: i}
	}
	return columns
}
