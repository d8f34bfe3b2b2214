package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// EmployerHeader carries the pre-authorized employer scope on API requests.
const EmployerHeader = "X-Employer-ID"

type contextKey string

const employerIDKey contextKey = "employerID"

// ContextWithEmployerID returns a new context that carries the authenticated employer scope.
func ContextWithEmployerID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, employerIDKey, id)
}

// EmployerIDFromContext retrieves the authenticated employer scope from the context, if any.
func EmployerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(employerIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// EnforceEmployerScope ensures a resource's employer matches the authenticated
// scope when one is present.
func EnforceEmployerScope(ctx context.Context, employerID uuid.UUID) error {
	if employerID == uuid.Nil {
		return errors.Wrap(domain.ErrScopeMismatch, "employer id is required")
	}
	scopedID, ok := EmployerIDFromContext(ctx)
	if !ok {
		return nil
	}
	if scopedID != employerID {
		return errors.Wrapf(domain.ErrScopeMismatch, "employer %s does not match authenticated scope", employerID)
	}
	return nil
}

// EmployerScope reads the employer header and stores it on the request
// context. Requests without a valid header are rejected.
func EmployerScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(EmployerHeader))
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"missing or invalid ` + EmployerHeader + ` header","code":"scope_required"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithEmployerID(r.Context(), id)))
	})
}
