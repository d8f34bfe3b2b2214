package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// templateRepository implements TemplateRepository on Postgres.
type templateRepository struct {
	pool *pgxpool.Pool
}

// NewTemplateRepository creates a new mapping template repository.
func NewTemplateRepository(pool *pgxpool.Pool) TemplateRepository {
	return &templateRepository{pool: pool}
}

// Create inserts a template. Duplicate names are allowed.
func (r *templateRepository) Create(ctx context.Context, template domain.MappingTemplate) (domain.MappingTemplate, error) {
	mappings, err := template.ColumnMappings.ToJSON()
	if err != nil {
		return domain.MappingTemplate{}, fmt.Errorf("failed to marshal template mappings: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO mapping_templates (id, employer_id, name, column_mappings, match_strategy, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, employer_id, name, column_mappings, match_strategy, created_at`,
		template.ID,
		template.EmployerID,
		template.Name,
		mappings,
		string(template.MatchStrategy),
		template.CreatedAt,
	)
	created, err := scanTemplate(row)
	if err != nil {
		return domain.MappingTemplate{}, fmt.Errorf("failed to create mapping template: %w", err)
	}
	return created, nil
}

// GetByID retrieves a template by ID
func (r *templateRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.MappingTemplate, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, employer_id, name, column_mappings, match_strategy, created_at
		 FROM mapping_templates WHERE id = $1`,
		id,
	)
	template, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MappingTemplate{}, fmt.Errorf("template %s: %w", id, domain.ErrTemplateNotFound)
		}
		return domain.MappingTemplate{}, fmt.Errorf("failed to get mapping template: %w", err)
	}
	return template, nil
}

// ListByEmployer lists an employer's templates, oldest first.
func (r *templateRepository) ListByEmployer(ctx context.Context, employerID uuid.UUID) ([]domain.MappingTemplate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, employer_id, name, column_mappings, match_strategy, created_at
		 FROM mapping_templates
		 WHERE employer_id = $1
		 ORDER BY created_at, seq`,
		employerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping templates: %w", err)
	}
	defer rows.Close()

	templates := []domain.MappingTemplate{}
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping template: %w", err)
		}
		templates = append(templates, template)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mapping templates: %w", err)
	}
	return templates, nil
}

func scanTemplate(row pgx.Row) (domain.MappingTemplate, error) {
	var (
		template domain.MappingTemplate
		mappings []byte
		strategy string
	)
	if err := row.Scan(
		&template.ID,
		&template.EmployerID,
		&template.Name,
		&mappings,
		&strategy,
		&template.CreatedAt,
	); err != nil {
		return domain.MappingTemplate{}, err
	}
	parsed, err := domain.FieldMappingFromJSON(mappings)
	if err != nil {
		return domain.MappingTemplate{}, fmt.Errorf("failed to decode template mappings: %w", err)
	}
	template.ColumnMappings = parsed
	template.MatchStrategy = domain.MatchStrategy(strategy)
	return template, nil
}
