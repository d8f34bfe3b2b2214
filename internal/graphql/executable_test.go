package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/auth"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/repository"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/session"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/sourcestore"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/tabular"
)

var employer = uuid.MustParse("3c5d7e9f-1a2b-4c3d-8e4f-5a6b7c8d9e0f")

const payrollCSV = "Employee ID,First Name,Last Name,Hours\nE100,Ana,Lopez,40\nE200,Li,Wei,abc\nE200,Li,Wei,12\n"

type fixture struct {
	server  *httptest.Server
	service *session.Service
	hook    *test.Hook
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	service := session.NewService(session.Dependencies{
		Sessions:  repository.NewMemorySessionRepository(),
		Templates: repository.NewMemoryTemplateRepository(),
		ImportLog: repository.NewMemoryImportLogRepository(),
		Directory: repository.NewMemoryEmployeeDirectory(
			domain.Employee{EmployerID: employer, EmployeeID: "E100", FirstName: "Ana", LastName: "Lopez"},
			domain.Employee{EmployerID: employer, EmployeeID: "E200", FirstName: "Li", LastName: "Wei"},
		),
		Sources:   sourcestore.NewMemoryStore(0),
		Committer: repository.NewMemoryCommitter(),
		Logger:    logger,
	}, session.DefaultConfig())

	server := httptest.NewServer(auth.EmployerScope(NewHandler(NewResolver(service), logger)))
	t.Cleanup(server.Close)
	return fixture{server: server, service: service, hook: hook}
}

func (f fixture) newSession(t *testing.T) string {
	t.Helper()
	parsed, err := tabular.Parse("payroll.csv", []byte(payrollCSV), tabular.Options{})
	require.NoError(t, err)
	created, err := f.service.InitSession(auth.ContextWithEmployerID(context.Background(), employer), employer, parsed.Table, "payroll.csv")
	require.NoError(t, err)
	return created.ID.String()
}

type gqlError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path"`
	Extensions map[string]any `json:"extensions"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

func (f fixture) do(t *testing.T, employerID uuid.UUID, query string, variables map[string]any) gqlResponse {
	t.Helper()
	var body bytes.Buffer
	require.NoError(t, json.NewEncoder(&body).Encode(map[string]any{"query": query, "variables": variables}))
	req, err := http.NewRequest(http.MethodPost, f.server.URL, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.EmployerHeader, employerID.String())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out gqlResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func decodeData[T any](t *testing.T, resp gqlResponse) T {
	t.Helper()
	require.Empty(t, resp.Errors)
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}

func TestImportSessionQueryHonoursSelection(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	resp := f.do(t, employer, `
		query Get($id: ID!) {
			session: importSession(id: $id) {
				__typename
				id
				status
				...counts
				detectedColumns { name dataType }
			}
		}
		fragment counts on ImportSession { rowCount mappingRevision }
	`, map[string]any{"id": id})

	data := decodeData[struct {
		Session map[string]any `json:"session"`
	}](t, resp)
	assert.Len(t, data.Session, 6, "only selected fields are returned")
	assert.Equal(t, "ImportSession", data.Session["__typename"])
	assert.Equal(t, id, data.Session["id"])
	assert.Equal(t, "created", data.Session["status"])
	assert.EqualValues(t, 3, data.Session["rowCount"])
	assert.EqualValues(t, 0, data.Session["mappingRevision"])

	columns, ok := data.Session["detectedColumns"].([]any)
	require.True(t, ok)
	require.Len(t, columns, 4)
	first := columns[0].(map[string]any)
	assert.Equal(t, "Employee ID", first["name"])
	assert.NotContains(t, first, "sampleValues")
}

func TestImportFlowOverGraphQL(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	resolved := decodeData[struct {
		ResolveMapping struct {
			Mapping   map[string]string `json:"mapping"`
			Readiness struct {
				Ready bool `json:"ready"`
			} `json:"readiness"`
		} `json:"resolveMapping"`
	}](t, f.do(t, employer, `query($id: ID!) { resolveMapping(sessionId: $id) { mapping readiness { ready } } }`, map[string]any{"id": id}))
	assert.True(t, resolved.ResolveMapping.Readiness.Ready)
	assert.Equal(t, "hours", resolved.ResolveMapping.Mapping["Hours"])

	saved := decodeData[struct {
		SaveMapping struct {
			Status          string `json:"status"`
			MappingRevision int    `json:"mappingRevision"`
			MatchStrategy   string `json:"matchStrategy"`
		} `json:"saveMapping"`
	}](t, f.do(t, employer, `
		mutation($id: ID!, $mapping: Map!) {
			saveMapping(sessionId: $id, mapping: $mapping, matchStrategy: "id") { status mappingRevision matchStrategy }
		}
	`, map[string]any{"id": id, "mapping": resolved.ResolveMapping.Mapping}))
	assert.Equal(t, "mapped", saved.SaveMapping.Status)
	assert.Equal(t, 1, saved.SaveMapping.MappingRevision)
	assert.Equal(t, "id", saved.SaveMapping.MatchStrategy)

	preview := decodeData[struct {
		PreviewSession struct {
			TotalRows    int `json:"totalRows"`
			SuccessCount int `json:"successCount"`
			ErrorCount   int `json:"errorCount"`
			Rows         []struct {
				RowNumber   int `json:"rowNumber"`
				MatchResult struct {
					Matched  bool `json:"matched"`
					Employee struct {
						EmployeeID string `json:"employeeId"`
					} `json:"employee"`
				} `json:"matchResult"`
			} `json:"rows"`
		} `json:"previewSession"`
	}](t, f.do(t, employer, `
		mutation($id: ID!, $limit: Int) {
			previewSession(sessionId: $id, limit: $limit) {
				totalRows successCount errorCount
				rows { rowNumber matchResult { matched employee { employeeId } } }
			}
		}
	`, map[string]any{"id": id, "limit": 1}))
	assert.Equal(t, 3, preview.PreviewSession.TotalRows)
	assert.Equal(t, 2, preview.PreviewSession.SuccessCount)
	assert.Equal(t, 1, preview.PreviewSession.ErrorCount)
	require.Len(t, preview.PreviewSession.Rows, 1)
	assert.True(t, preview.PreviewSession.Rows[0].MatchResult.Matched)
	assert.Equal(t, "E100", preview.PreviewSession.Rows[0].MatchResult.Employee.EmployeeID)

	committed := decodeData[struct {
		CommitSession struct {
			CommittedCount int `json:"committedCount"`
			ExcludedCount  int `json:"excludedCount"`
			Session        struct {
				Status string `json:"status"`
			} `json:"session"`
		} `json:"commitSession"`
	}](t, f.do(t, employer, `mutation($id: ID!) { commitSession(sessionId: $id) { committedCount excludedCount session { status } } }`, map[string]any{"id": id}))
	assert.Equal(t, 2, committed.CommitSession.CommittedCount)
	assert.Equal(t, 1, committed.CommitSession.ExcludedCount)
	assert.Equal(t, "committed", committed.CommitSession.Session.Status)

	log := decodeData[struct {
		ImportLog []struct {
			SessionID    string `json:"sessionId"`
			RowNumber    int    `json:"rowNumber"`
			ErrorMessage string `json:"errorMessage"`
		} `json:"importLog"`
	}](t, f.do(t, employer, `query($id: ID!) { importLog(sessionId: $id, limit: 10) { sessionId rowNumber errorMessage } }`, map[string]any{"id": id}))
	require.Len(t, log.ImportLog, 1)
	assert.Equal(t, id, log.ImportLog[0].SessionID)
	assert.Equal(t, 3, log.ImportLog[0].RowNumber)
	assert.Contains(t, log.ImportLog[0].ErrorMessage, "hours")
}

func TestTemplatesOverGraphQL(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	mapping := map[string]any{
		"Employee ID": "employeeId",
		"First Name":  "firstName",
		"Last Name":   "lastName",
		"Hours":       "hours",
	}
	created := decodeData[struct {
		SaveTemplate struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			MatchStrategy string `json:"matchStrategy"`
		} `json:"saveTemplate"`
	}](t, f.do(t, employer, `
		mutation($mapping: Map) {
			saveTemplate(name: "weekly payroll", mapping: $mapping, matchStrategy: "id") { id name matchStrategy }
		}
	`, map[string]any{"mapping": mapping}))
	assert.Equal(t, "weekly payroll", created.SaveTemplate.Name)
	assert.Equal(t, "id", created.SaveTemplate.MatchStrategy)

	listed := decodeData[struct {
		Templates []struct {
			ID string `json:"id"`
		} `json:"templates"`
	}](t, f.do(t, employer, `{ templates { id } }`, nil))
	require.Len(t, listed.Templates, 1)
	assert.Equal(t, created.SaveTemplate.ID, listed.Templates[0].ID)

	applied := decodeData[struct {
		ApplyTemplate struct {
			Session struct {
				Status         string            `json:"status"`
				ColumnMappings map[string]string `json:"columnMappings"`
			} `json:"session"`
			Resolution struct {
				Readiness struct {
					Ready bool `json:"ready"`
				} `json:"readiness"`
			} `json:"resolution"`
		} `json:"applyTemplate"`
	}](t, f.do(t, employer, `
		mutation($id: ID!, $template: ID!) {
			applyTemplate(sessionId: $id, templateId: $template) {
				session { status columnMappings }
				resolution { readiness { ready } }
			}
		}
	`, map[string]any{"id": id, "template": created.SaveTemplate.ID}))
	assert.Equal(t, "mapped", applied.ApplyTemplate.Session.Status)
	assert.Equal(t, "hours", applied.ApplyTemplate.Session.ColumnMappings["Hours"])
	assert.True(t, applied.ApplyTemplate.Resolution.Readiness.Ready)

	aborted := decodeData[struct {
		AbortSession struct {
			Status string `json:"status"`
		} `json:"abortSession"`
	}](t, f.do(t, employer, `mutation($id: ID!) { abortSession(sessionId: $id) { status } }`, map[string]any{"id": id}))
	assert.Equal(t, "aborted", aborted.AbortSession.Status)
}

func TestResolverErrorsCarryStableCodes(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	cases := []struct {
		name     string
		employer uuid.UUID
		query    string
		vars     map[string]any
		code     string
	}{
		{name: "malformed id", employer: employer, query: `{ importSession(id: "not-a-uuid") { id } }`, code: "bad_request"},
		{name: "unknown session", employer: employer, query: `query($id: ID!) { importSession(id: $id) { id } }`, vars: map[string]any{"id": uuid.NewString()}, code: "session_not_found"},
		{name: "other employer", employer: uuid.New(), query: `query($id: ID!) { importSession(id: $id) { id } }`, vars: map[string]any{"id": id}, code: "scope_mismatch"},
		{name: "commit before preview", employer: employer, query: `mutation($id: ID!) { commitSession(sessionId: $id) { committedCount } }`, vars: map[string]any{"id": id}, code: "invalid_transition"},
		{name: "unknown target field", employer: employer, query: `mutation($id: ID!, $m: Map!) { saveMapping(sessionId: $id, mapping: $m) { id } }`, vars: map[string]any{"id": id, "m": map[string]any{"Hours": "overtime"}}, code: "invalid_mapping"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.do(t, tc.employer, tc.query, tc.vars)
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, tc.code, resp.Errors[0].Extensions["code"])
			assert.NotEmpty(t, resp.Errors[0].Path)
		})
	}
}

func TestValidationErrorsPassThrough(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, employer, `{ importSession { id } }`, nil)
	require.NotEmpty(t, resp.Errors)
	assert.NotContains(t, resp.Errors[0].Extensions, "kind")
	assert.NotEqual(t, "internal error", resp.Errors[0].Message)
}

func TestResolverLoggerRecordsRootFields(t *testing.T) {
	f := newFixture(t)
	id := f.newSession(t)

	decodeData[map[string]any](t, f.do(t, employer, `query($id: ID!) { importSession(id: $id) { id } }`, map[string]any{"id": id}))

	var resolvers []string
	for _, entry := range f.hook.AllEntries() {
		if resolver, ok := entry.Data["resolver"].(string); ok {
			resolvers = append(resolvers, resolver)
		}
	}
	assert.Contains(t, resolvers, "Query.importSession")
}
