package importapi

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// validate is shared; validator caches struct metadata and is safe for
// concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// The built-in uuid tag only accepts lowercase hex.
	if err := v.RegisterValidation("anyuuid", func(fl validator.FieldLevel) bool {
		_, err := uuid.Parse(strings.TrimSpace(fl.Field().String()))
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

type resolveRequest struct {
	TemplateID *string           `json:"templateId" validate:"omitempty,anyuuid"`
	Overrides  map[string]string `json:"overrides" validate:"omitempty,dive,keys,required,endkeys"`
}

type saveMappingRequest struct {
	Mapping       map[string]string `json:"mapping" validate:"required,min=1,dive,keys,required,endkeys"`
	MatchStrategy string            `json:"matchStrategy" validate:"omitempty,oneof=id ssn email name auto"`
}

type applyTemplateRequest struct {
	TemplateID string `json:"templateId" validate:"required,anyuuid"`
}

type previewRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=10000"`
}

type saveTemplateRequest struct {
	Name          string            `json:"name" validate:"required,max=200"`
	SessionID     *string           `json:"sessionId" validate:"omitempty,anyuuid"`
	Mapping       map[string]string `json:"mapping" validate:"omitempty,dive,keys,required,endkeys"`
	MatchStrategy string            `json:"matchStrategy" validate:"omitempty,oneof=id ssn email name auto"`
}

// check runs the struct validator and flattens its report into one message.
func check(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		if fieldErr.Param() != "" {
			messages = append(messages, fmt.Sprintf("%s: failed %s=%s", fieldErr.Field(), fieldErr.Tag(), fieldErr.Param()))
			continue
		}
		messages = append(messages, fmt.Sprintf("%s: failed %s", fieldErr.Field(), fieldErr.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(messages, "; "))
}

func parseMapping(raw map[string]string) (domain.FieldMapping, error) {
	mapping := make(domain.FieldMapping, len(raw))
	for column, value := range raw {
		field, err := domain.ParseTargetField(value)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		mapping[column] = field
	}
	return mapping, nil
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}
