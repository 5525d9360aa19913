package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atvirokodosprendimai/cmdb/internal/adapters/db/sqlstore"
	"github.com/atvirokodosprendimai/cmdb/internal/application"
	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details []fieldError    `json:"details"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "http_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlstore.RunMigrations(ctx, db))

	service := application.NewCMDBService(sqlstore.NewRepository(db), zerolog.Nop())
	srv := httptest.NewServer(NewRouter(service, zerolog.Nop()))
	t.Cleanup(func() {
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (int, testResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out testResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func createCI(t *testing.T, srv *httptest.Server, name, ciType string) map[string]any {
	t.Helper()
	status, resp := do(t, srv, http.MethodPost, "/api/cis", map[string]any{
		"name": name, "type": ciType, "status": "Active", "location": "DC-East", "environment": "Production",
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	var ci map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &ci))
	return ci
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "OK", out["status"])
	assert.NotEmpty(t, out["timestamp"])
}

func TestCreateCI(t *testing.T) {
	srv := newTestServer(t)

	ci := createCI(t, srv, "WEB-01", "Server")
	assert.Equal(t, "WEB-01", ci["name"])
	assert.NotEmpty(t, ci["id"])
	assert.Equal(t, ci["createdAt"], ci["updatedAt"])

	status, resp := do(t, srv, http.MethodGet, "/api/cis/"+ci["id"].(string), nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
}

func TestCreateCIValidation(t *testing.T) {
	srv := newTestServer(t)

	status, resp := do(t, srv, http.MethodPost, "/api/cis", map[string]any{"type": "Server", "status": "Broken", "ipAddress": "nope"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", resp.Error)

	fields := map[string]string{}
	for _, d := range resp.Details {
		fields[d.Field] = d.Rule
	}
	assert.Equal(t, "required", fields["name"])
	assert.Equal(t, "oneof", fields["status"])
	assert.Equal(t, "ip", fields["ipAddress"])

	status, resp = do(t, srv, http.MethodPost, "/api/cis", "{not json")
	require.Equal(t, http.StatusBadRequest, status)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "body", resp.Details[0].Field)

	status, resp = do(t, srv, http.MethodPost, "/api/cis", map[string]any{"name": "X", "type": "VM", "status": "Active", "metadata": []int{1}})
	require.Equal(t, http.StatusBadRequest, status)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "metadata", resp.Details[0].Field)
}

func TestBlankNamesReportDetails(t *testing.T) {
	srv := newTestServer(t)

	status, resp := do(t, srv, http.MethodPost, "/api/cis", map[string]any{"name": "   ", "type": "Server", "status": "Active"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", resp.Error)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "name", resp.Details[0].Field)
	assert.Equal(t, "notblank", resp.Details[0].Rule)
	assert.Equal(t, "name must not be blank", resp.Details[0].Message)

	id := createCI(t, srv, "WEB-01", "Server")["id"].(string)
	status, resp = do(t, srv, http.MethodPut, "/api/cis/"+id, map[string]any{"type": " "})
	require.Equal(t, http.StatusBadRequest, status)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "type", resp.Details[0].Field)
	assert.Equal(t, "notblank", resp.Details[0].Rule)

	status, resp = do(t, srv, http.MethodPost, "/api/tickets", map[string]any{"title": "\t", "status": "Open", "priority": "High"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "title", resp.Details[0].Field)
}

func TestUpdateAndDeleteCI(t *testing.T) {
	srv := newTestServer(t)
	ci := createCI(t, srv, "DB-01", "Database")
	id := ci["id"].(string)

	status, resp := do(t, srv, http.MethodPut, "/api/cis/"+id, map[string]any{"status": "Maintenance"})
	require.Equal(t, http.StatusOK, status)
	var updated map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.Equal(t, "Maintenance", updated["status"])
	assert.Equal(t, "DB-01", updated["name"])

	status, resp = do(t, srv, http.MethodPut, "/api/cis/missing", map[string]any{"status": "Active"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Configuration item not found", resp.Error)

	status, resp = do(t, srv, http.MethodDelete, "/api/cis/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.Equal(t, "Configuration item deleted", resp.Message)

	status, _ = do(t, srv, http.MethodDelete, "/api/cis/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTicketFilters(t *testing.T) {
	srv := newTestServer(t)

	for _, tk := range []map[string]any{
		{"title": "a", "status": "Open", "priority": "High"},
		{"title": "b", "status": "Open", "priority": "Low"},
		{"title": "c", "status": "Closed", "priority": "High"},
	} {
		status, resp := do(t, srv, http.MethodPost, "/api/tickets", tk)
		require.Equal(t, http.StatusCreated, status, resp.Error)
	}

	_, resp := do(t, srv, http.MethodGet, "/api/tickets?status=Open&priority=High", nil)
	var filtered []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "a", filtered[0]["title"])

	_, resp = do(t, srv, http.MethodGet, "/api/tickets?status=&priority=", nil)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &all))
	assert.Len(t, all, 3)

	status, resp := do(t, srv, http.MethodPut, "/api/tickets/missing", map[string]any{"status": "Closed"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Ticket not found", resp.Error)
}

func TestCITicketsAndRelationships(t *testing.T) {
	srv := newTestServer(t)
	app := createCI(t, srv, "APP-01", "VM")
	db := createCI(t, srv, "DB-01", "Database")
	appID, dbID := app["id"].(string), db["id"].(string)

	status, _ := do(t, srv, http.MethodPost, "/api/tickets", map[string]any{"title": "lag", "status": "Open", "priority": "High", "ciId": dbID})
	require.Equal(t, http.StatusCreated, status)

	_, resp := do(t, srv, http.MethodGet, "/api/cis/"+dbID+"/tickets", nil)
	var tickets []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &tickets))
	assert.Len(t, tickets, 1)

	status, resp = do(t, srv, http.MethodPost, "/api/relationships", map[string]any{"sourceId": appID, "targetId": dbID, "relationshipType": "depends_on"})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	var rel map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &rel))

	status, resp = do(t, srv, http.MethodPost, "/api/relationships", map[string]any{"sourceId": appID, "targetId": dbID, "relationshipType": "depends_on"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, resp.Error, "relationship already exists")

	status, _ = do(t, srv, http.MethodPost, "/api/relationships", map[string]any{"sourceId": appID, "targetId": appID, "relationshipType": "depends_on"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = do(t, srv, http.MethodPost, "/api/relationships", map[string]any{"sourceId": appID, "targetId": "ghost", "relationshipType": "depends_on"})
	assert.Equal(t, http.StatusNotFound, status)

	_, resp = do(t, srv, http.MethodGet, "/api/cis/"+appID+"/relationships", nil)
	var rels []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &rels))
	assert.Len(t, rels, 1)

	status, resp = do(t, srv, http.MethodGet, "/api/cis/"+appID+"/topology", nil)
	require.Equal(t, http.StatusOK, status)
	var layout struct {
		Nodes []map[string]any `json:"nodes"`
		Links []map[string]any `json:"links"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &layout))
	assert.Len(t, layout.Nodes, 2)
	assert.Len(t, layout.Links, 1)

	status, _ = do(t, srv, http.MethodDelete, "/api/relationships/"+rel["id"].(string), nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = do(t, srv, http.MethodDelete, "/api/relationships/"+rel["id"].(string), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSLAMetricsAcceptStringBreached(t *testing.T) {
	srv := newTestServer(t)

	status, resp := do(t, srv, http.MethodPost, "/api/sla-metrics", map[string]any{
		"serviceName": "checkout", "metricName": "uptime", "targetValue": 99.9, "actualValue": 97.1, "breached": "true",
	})
	require.Equal(t, http.StatusCreated, status, resp.Error)
	var metric map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &metric))
	assert.Equal(t, true, metric["breached"])

	status, _ = do(t, srv, http.MethodPost, "/api/sla-metrics", map[string]any{"serviceName": "checkout", "metricName": "uptime", "breached": "maybe"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = do(t, srv, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, status)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.EqualValues(t, 1, summary["breachedSLAs"])
	assert.EqualValues(t, 0, summary["openTickets"])
}

func TestTopologyPageAndView(t *testing.T) {
	srv := newTestServer(t)
	app := createCI(t, srv, "APP-01", "VM")
	id := app["id"].(string)

	resp, err := srv.Client().Get(srv.URL + "/topology/" + id)
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), `id="topology-canvas"`)

	resp, err = srv.Client().Post(srv.URL+"/topology/"+id+"/view", "application/json", strings.NewReader(`{"zoom":1,"action":"zoom_in"}`))
	require.NoError(t, err)
	fragments, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(fragments), `id="topology-details"`)
	assert.Contains(t, string(fragments), `&#34;zoom&#34;:1.2`)
	assert.Contains(t, string(fragments), `width="720.00"`)

	resp, err = srv.Client().Get(srv.URL + "/topology/missing")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	_, _ = do(t, srv, http.MethodGet, "/api/cis", nil)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "cmdb_http_requests_total")
}

type brokenMetricsRepo struct {
	domain.CMDBRepository
}

func (brokenMetricsRepo) ListCIs(context.Context) ([]domain.ConfigurationItem, error) {
	return nil, nil
}

func (brokenMetricsRepo) ListTickets(context.Context, domain.TicketFilter) ([]domain.Ticket, error) {
	return nil, nil
}

func (brokenMetricsRepo) ListSLAMetrics(context.Context) ([]domain.SLAMetric, error) {
	return nil, errors.New("pq: relation \"sla_metrics\" does not exist")
}

func TestDashboardHidesStoreErrors(t *testing.T) {
	service := application.NewCMDBService(brokenMetricsRepo{}, zerolog.Nop())
	srv := httptest.NewServer(NewRouter(service, zerolog.Nop()))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Get(srv.URL + "/api/dashboard")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"Failed to fetch dashboard data"}`, string(body))
	assert.NotContains(t, string(body), "sla_metrics")
}
