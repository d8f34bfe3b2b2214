// Package graphql serves import sessions and mapping templates over GraphQL.
package graphql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/auth"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/session"
)

const maxPreviewLimit = 10000

var validate = validator.New(validator.WithRequiredStructEnabled())

// Resolver handles GraphQL queries and mutations
type Resolver struct {
	service *session.Service
}

// NewResolver creates a new GraphQL resolver
func NewResolver(service *session.Service) *Resolver {
	return &Resolver{service: service}
}

// argumentError is a malformed argument that never reached the service.
type argumentError struct {
	message string
}

func (e *argumentError) Error() string { return e.message }

func badArgument(format string, args ...any) error {
	return &argumentError{message: fmt.Sprintf(format, args...)}
}

// templateApplication is what applyTemplate returns.
type templateApplication struct {
	Session    domain.ImportSession  `json:"session"`
	Resolution session.ResolveResult `json:"resolution"`
}

// importLogEntry is the GraphQL shape of an excluded row.
type importLogEntry struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"sessionId"`
	EmployerID   uuid.UUID `json:"employerId"`
	FileName     string    `json:"fileName"`
	RowNumber    *int      `json:"rowNumber"`
	ErrorMessage string    `json:"errorMessage"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toGraphImportLogEntry(entry domain.ImportLogEntry) importLogEntry {
	return importLogEntry{
		ID:           entry.ID,
		SessionID:    entry.SessionID,
		EmployerID:   entry.EmployerID,
		FileName:     entry.FileName,
		RowNumber:    entry.RowNumber,
		ErrorMessage: entry.ErrorMessage,
		CreatedAt:    entry.CreatedAt,
	}
}

// Query resolvers

// ImportSession returns one session in the caller's scope.
func (r *Resolver) ImportSession(ctx context.Context, id string) (domain.ImportSession, error) {
	sessionID, err := parseID("id", id)
	if err != nil {
		return domain.ImportSession{}, err
	}
	return r.service.GetSession(ctx, sessionID)
}

// ResolveMapping suggests a mapping without saving it.
func (r *Resolver) ResolveMapping(ctx context.Context, sessionID string, templateID *string, overrides map[string]any) (session.ResolveResult, error) {
	id, err := parseID("sessionId", sessionID)
	if err != nil {
		return session.ResolveResult{}, err
	}
	template, err := parseOptionalID("templateId", templateID)
	if err != nil {
		return session.ResolveResult{}, err
	}
	fieldMapping, err := toFieldMapping(overrides)
	if err != nil {
		return session.ResolveResult{}, err
	}
	return r.service.ResolveMapping(ctx, id, template, fieldMapping)
}

// ImportLog lists one page of the rows excluded at commit.
func (r *Resolver) ImportLog(ctx context.Context, sessionID string, limit, offset *int) ([]importLogEntry, error) {
	id, err := parseID("sessionId", sessionID)
	if err != nil {
		return nil, err
	}
	entries, err := r.service.ImportLog(ctx, id, valueOrZero(limit), valueOrZero(offset))
	if err != nil {
		return nil, err
	}
	result := make([]importLogEntry, len(entries))
	for i, entry := range entries {
		result[i] = toGraphImportLogEntry(entry)
	}
	return result, nil
}

// Templates lists the caller's templates in creation order.
func (r *Resolver) Templates(ctx context.Context) ([]domain.MappingTemplate, error) {
	employerID, ok := auth.EmployerIDFromContext(ctx)
	if !ok {
		return nil, badArgument("employer scope is required")
	}
	return r.service.ListTemplates(ctx, employerID)
}

// Template returns one template in the caller's scope.
func (r *Resolver) Template(ctx context.Context, id string) (domain.MappingTemplate, error) {
	templateID, err := parseID("id", id)
	if err != nil {
		return domain.MappingTemplate{}, err
	}
	return r.service.GetTemplate(ctx, templateID)
}

// Mutation resolvers

// SaveMapping stores the caller's mapping and strategy.
func (r *Resolver) SaveMapping(ctx context.Context, sessionID string, mapping map[string]any, matchStrategy *string) (domain.ImportSession, error) {
	id, err := parseID("sessionId", sessionID)
	if err != nil {
		return domain.ImportSession{}, err
	}
	fieldMapping, err := toFieldMapping(mapping)
	if err != nil {
		return domain.ImportSession{}, err
	}
	if len(fieldMapping) == 0 {
		return domain.ImportSession{}, badArgument("mapping must name at least one column")
	}
	strategy, err := parseStrategy(matchStrategy)
	if err != nil {
		return domain.ImportSession{}, err
	}
	return r.service.SaveMapping(ctx, id, fieldMapping, strategy)
}

// ApplyTemplate resolves against a template and saves the result.
func (r *Resolver) ApplyTemplate(ctx context.Context, sessionID, templateID string) (templateApplication, error) {
	id, err := parseID("sessionId", sessionID)
	if err != nil {
		return templateApplication{}, err
	}
	template, err := parseID("templateId", templateID)
	if err != nil {
		return templateApplication{}, err
	}
	saved, resolved, err := r.service.ApplyTemplate(ctx, id, template)
	if err != nil {
		return templateApplication{}, err
	}
	return templateApplication{Session: saved, Resolution: resolved}, nil
}

// PreviewSession runs a dry run against the stored source table.
func (r *Resolver) PreviewSession(ctx context.Context, sessionID string, limit *int) (session.PreviewResult, error) {
	id, err := parseID("sessionId", sessionID)
	if err != nil {
		return session.PreviewResult{}, err
	}
	rows := valueOrZero(limit)
	if err := validate.Var(rows, fmt.Sprintf("gte=0,lte=%d", maxPreviewLimit)); err != nil {
		return session.PreviewResult{}, badArgument("limit must be between 0 and %d", maxPreviewLimit)
	}
	return r.service.GeneratePreview(ctx, id, nil, rows)
}

// CommitSession hands the valid rows to the committer.
func (r *Resolver) CommitSession(ctx context.Context, sessionID string) (session.CommitResult, error) {
	id, err := parseID("sessionId", sessionID)
	if err != nil {
		return session.CommitResult{}, err
	}
	return r.service.CommitSession(ctx, id)
}

// AbortSession cancels a session.
func (r *Resolver) AbortSession(ctx context.Context, sessionID string) (domain.ImportSession, error) {
	id, err := parseID("sessionId", sessionID)
	if err != nil {
		return domain.ImportSession{}, err
	}
	return r.service.AbortSession(ctx, id)
}

// SaveTemplate saves a template from a session or from an explicit mapping.
func (r *Resolver) SaveTemplate(ctx context.Context, name string, sessionID *string, mapping map[string]any, matchStrategy *string) (domain.MappingTemplate, error) {
	if err := validate.Var(name, "required,max=200"); err != nil {
		return domain.MappingTemplate{}, badArgument("name is required and at most 200 characters")
	}
	source, err := parseOptionalID("sessionId", sessionID)
	if err != nil {
		return domain.MappingTemplate{}, err
	}
	if source != nil {
		return r.service.SaveTemplateFromSession(ctx, *source, name)
	}

	employerID, ok := auth.EmployerIDFromContext(ctx)
	if !ok {
		return domain.MappingTemplate{}, badArgument("employer scope is required")
	}
	if len(mapping) == 0 {
		return domain.MappingTemplate{}, badArgument("either sessionId or mapping is required")
	}
	fieldMapping, err := toFieldMapping(mapping)
	if err != nil {
		return domain.MappingTemplate{}, err
	}
	strategy, err := parseStrategy(matchStrategy)
	if err != nil {
		return domain.MappingTemplate{}, err
	}
	return r.service.SaveTemplate(ctx, employerID, name, fieldMapping, strategy)
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, badArgument("invalid %s: %v", name, err)
	}
	return id, nil
}

func parseOptionalID(name string, raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := parseID(name, *raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// toFieldMapping reads a Map argument of column name to target field.
func toFieldMapping(raw map[string]any) (domain.FieldMapping, error) {
	mapping := make(domain.FieldMapping, len(raw))
	for column, value := range raw {
		if strings.TrimSpace(column) == "" {
			return nil, fmt.Errorf("%w: column name is empty", domain.ErrInvalidMapping)
		}
		name, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: column %q: target field must be a string", domain.ErrInvalidMapping, column)
		}
		field, err := domain.ParseTargetField(name)
		if err != nil {
			return nil, fmt.Errorf("%w: column %q: %v", domain.ErrInvalidMapping, column, err)
		}
		mapping[column] = field
	}
	return mapping, nil
}

func parseStrategy(raw *string) (domain.MatchStrategy, error) {
	strategy, err := domain.ParseMatchStrategy(valueOrZero(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidMapping, err)
	}
	return strategy, nil
}

func valueOrZero[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
