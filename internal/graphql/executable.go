package graphql

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	gqlgen "github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphql
var schemaSource string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphql", Input: schemaSource})

// rootField resolves one Query or Mutation field from its coerced arguments.
type rootField func(ctx context.Context, r *Resolver, args map[string]any) (any, error)

var queryFields = map[string]rootField{
	"importSession": func(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
		return r.ImportSession(ctx, stringArg(args, "id"))
	},
	"resolveMapping": func(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
		return r.ResolveMapping(ctx, stringArg(args, "sessionId"), optionalStringArg(args, "templateId"), mapArg(args, "overrides"))
	},
	"importLog": func(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
		limit, err := intArg(args, "limit")
		if err != nil {
			return nil, err
		}
		offset, err := intArg(args, "offset")
		if err != nil {
			return nil, err
		}
		return r.ImportLog(ctx, stringArg(args, "sessionId"), limit, offset)
	},
	"templates": func(ctx context.Context, r *Resolver, _ map[string]any) (any, error) {
		return r.Templates(ctx)
	},
	"template": func(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
		return r.Template(ctx, stringArg(args, "id"))
	},
}

var mutationFields = map[string]rootField{
	"saveMapping": func(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
		return r.SaveMapping(ctx, stringArg(args, "sessionId"), mapArg(args, "mapping"), optionalStringArg(args, "matchStrategy"))
	},
	"applyTemplate": func(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
		return r.ApplyTemplate(ctx, stringArg(args, "sessionId"), stringArg(args, "templateId"))
	},
	"previewSession": func(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
		limit, err := intArg(args, "limit")
		if err != nil {
			return nil, err
		}
		return r.PreviewSession(ctx, stringArg(args, "sessionId"), limit)
	},
	"commitSession": func(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
		return r.CommitSession(ctx, stringArg(args, "sessionId"))
	},
	"abortSession": func(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
		return r.AbortSession(ctx, stringArg(args, "sessionId"))
	},
	"saveTemplate": func(ctx context.Context, r *Resolver, args map[string]any) (any, error) {
		return r.SaveTemplate(ctx, stringArg(args, "name"), optionalStringArg(args, "sessionId"), mapArg(args, "mapping"), optionalStringArg(args, "matchStrategy"))
	},
}

// executableSchema runs operations against the Resolver. Root fields call
// the resolver; everything below them is read from the resolver's JSON
// encoding, so the schema's field names follow the domain JSON tags.
type executableSchema struct {
	resolver *Resolver
}

// NewExecutableSchema binds the embedded schema to resolver.
func NewExecutableSchema(resolver *Resolver) gqlgen.ExecutableSchema {
	return &executableSchema{resolver: resolver}
}

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

func (e *executableSchema) Complexity(_ context.Context, _, _ string, _ int, _ map[string]any) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) gqlgen.ResponseHandler {
	opCtx := gqlgen.GetOperationContext(ctx)

	var (
		root   string
		fields map[string]rootField
	)
	switch opCtx.Operation.Operation {
	case ast.Query:
		root, fields = "Query", queryFields
	case ast.Mutation:
		root, fields = "Mutation", mutationFields
	default:
		return gqlgen.OneShot(gqlgen.ErrorResponse(ctx, "unsupported GraphQL operation: %s", opCtx.Operation.Operation))
	}

	first := true
	return func(ctx context.Context) *gqlgen.Response {
		if !first {
			return nil
		}
		first = false

		data := e.executeRoot(ctx, opCtx, root, fields)
		var buf bytes.Buffer
		data.MarshalGQL(&buf)
		return &gqlgen.Response{Data: buf.Bytes()}
	}
}

// executeRoot resolves the root selection in document order. Mutations are
// therefore serial.
func (e *executableSchema) executeRoot(ctx context.Context, opCtx *gqlgen.OperationContext, root string, resolvers map[string]rootField) *gqlgen.FieldSet {
	fields := gqlgen.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{root})
	out := gqlgen.NewFieldSet(fields)

	for i, field := range fields {
		if field.Name == "__typename" {
			out.Values[i] = gqlgen.MarshalString(root)
			continue
		}

		args := field.ArgumentMap(opCtx.Variables)
		fieldCtx := gqlgen.WithFieldContext(ctx, &gqlgen.FieldContext{
			Object:     root,
			Field:      field,
			Args:       args,
			IsMethod:   true,
			IsResolver: true,
		})

		resolve, ok := resolvers[field.Name]
		if !ok {
			gqlgen.AddError(fieldCtx, fmt.Errorf("%s.%s is not supported", root, field.Name))
			out.Values[i] = gqlgen.Null
			continue
		}

		next := func(ctx context.Context) (any, error) {
			return resolve(ctx, e.resolver, args)
		}
		var (
			res any
			err error
		)
		if opCtx.ResolverMiddleware != nil {
			res, err = opCtx.ResolverMiddleware(fieldCtx, next)
		} else {
			res, err = next(fieldCtx)
		}
		if err != nil {
			gqlgen.AddError(fieldCtx, err)
			out.Values[i] = gqlgen.Null
			continue
		}

		value, err := toJSONValue(res)
		if err != nil {
			gqlgen.AddError(fieldCtx, err)
			out.Values[i] = gqlgen.Null
			continue
		}
		out.Values[i] = project(opCtx, value, field)
	}
	return out
}

// project writes value restricted to the field's selection set.
func project(opCtx *gqlgen.OperationContext, value any, field gqlgen.CollectedField) gqlgen.Marshaler {
	if value == nil {
		return gqlgen.Null
	}
	if len(field.Selections) == 0 {
		return rawJSON(value)
	}

	switch v := value.(type) {
	case []any:
		items := make(gqlgen.Array, len(v))
		for i, item := range v {
			items[i] = project(opCtx, item, field)
		}
		return items
	case map[string]any:
		typeName := field.Definition.Type.Name()
		children := gqlgen.CollectFields(opCtx, field.Selections, []string{typeName})
		out := gqlgen.NewFieldSet(children)
		for i, child := range children {
			if child.Name == "__typename" {
				out.Values[i] = gqlgen.MarshalString(typeName)
				continue
			}
			out.Values[i] = project(opCtx, v[child.Name], child)
		}
		return out
	default:
		return rawJSON(value)
	}
}

func rawJSON(value any) gqlgen.Marshaler {
	return gqlgen.WriterFunc(func(w io.Writer) {
		encoded, err := json.Marshal(value)
		if err != nil {
			_, _ = io.WriteString(w, "null")
			return
		}
		_, _ = w.Write(encoded)
	})
}

// toJSONValue converts a resolver result into maps, slices and json.Number.
func toJSONValue(res any) (any, error) {
	encoded, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return value, nil
}

func stringArg(args map[string]any, name string) string {
	value, _ := args[name].(string)
	return value
}

func optionalStringArg(args map[string]any, name string) *string {
	value, ok := args[name].(string)
	if !ok {
		return nil
	}
	return &value
}

func mapArg(args map[string]any, name string) map[string]any {
	value, _ := args[name].(map[string]any)
	return value
}

// intArg reads an Int argument. Literals arrive as int64 and variables as
// json.Number.
func intArg(args map[string]any, name string) (*int, error) {
	var n int
	switch v := args[name].(type) {
	case nil:
		return nil, nil
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		n = int(v)
	case json.Number:
		parsed, err := strconv.Atoi(v.String())
		if err != nil {
			return nil, badArgument("invalid %s: %v", name, err)
		}
		n = parsed
	default:
		return nil, badArgument("invalid %s: %v", name, v)
	}
	return &n, nil
}
