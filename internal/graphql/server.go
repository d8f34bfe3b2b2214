package graphql

import (
	"context"
	"fmt"
	"net/http"

	gqlgen "github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/lru"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/middleware"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/session"
)

const (
	queryCacheSize  = 1000
	complexityLimit = 200
)

// NewHandler serves the schema over GET and POST. GET only runs queries.
func NewHandler(resolver *Resolver, logger *logrus.Logger) http.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "graphql")

	srv := handler.New(NewExecutableSchema(resolver))
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.SetQueryCache(lru.New[*ast.QueryDocument](queryCacheSize))
	srv.Use(extension.FixedComplexityLimit(complexityLimit))
	srv.Use(&middleware.ResolverLogger{Logger: logger})
	srv.SetErrorPresenter(presentError(log))
	srv.SetRecoverFunc(func(ctx context.Context, recovered any) error {
		log.WithField("panic", recovered).Error("graphql resolver panicked")
		return errors.New("internal error")
	})
	return srv
}

// presentError attaches a stable code and kind to resolver errors. Internal
// errors are logged and hidden. Parse and validation errors pass through.
func presentError(log *logrus.Entry) gqlgen.ErrorPresenterFunc {
	return func(ctx context.Context, err error) *gqlerror.Error {
		var gqlErr *gqlerror.Error
		if errors.As(err, &gqlErr) && gqlErr.Err == nil {
			return gqlErr
		}

		presented := gqlgen.DefaultErrorPresenter(ctx, err)
		kind, code := domain.ErrorKind(err), domain.ErrorCode(err)

		var argErr *argumentError
		if errors.As(err, &argErr) {
			kind, code = domain.KindStructural, "bad_request"
		}
		if kind == domain.KindInternal {
			log.WithError(err).WithField("path", fmt.Sprint(presented.Path)).Error("graphql request failed")
			presented.Message = "internal error"
		}

		if presented.Extensions == nil {
			presented.Extensions = map[string]any{}
		}
		presented.Extensions["code"] = code
		presented.Extensions["kind"] = kind

		var notReady *session.NotReadyError
		if errors.As(err, &notReady) {
			presented.Extensions["readiness"] = notReady.Readiness
		}
		return presented
	}
}
