package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClientUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/cis/web":
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":"web","name":"WEB-01","type":"Server","status":"Active"}}`))
		case "/api/health":
			_, _ = w.Write([]byte(`{"status":"OK","timestamp":"2024-01-01T00:00:00Z"}`))
		case "/api/cis":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Validation failed","details":[{"field":"name","rule":"required","message":"name is required"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":"Configuration item not found"}`))
		}
	}))
	t.Cleanup(srv.Close)

	cfg := cliConfig{Transport: transportHTTP, Server: srv.URL + "/"}
	ctx := context.Background()

	ci, err := doCIGet(ctx, cfg, "web")
	require.NoError(t, err)
	assert.Equal(t, "WEB-01", ci.Name)

	health, err := doHealth(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "OK", health["status"])

	_, err = doCICreate(ctx, cfg, domain.ConfigurationItem{Type: "Server"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(400)")
	assert.Contains(t, err.Error(), "name is required")

	_, err = doCIGet(ctx, cfg, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Configuration item not found")
}

func TestTicketFilterQuery(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	t.Cleanup(srv.Close)

	status, priority := domain.TicketStatusOpen, "High"
	cfg := cliConfig{Transport: transportHTTP, Server: srv.URL}
	out, err := doTicketsList(context.Background(), cfg, domain.TicketFilter{Status: &status, Priority: &priority})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "priority=High&status=Open", query)

	_, err = doTicketsList(context.Background(), cfg, domain.TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, query)
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "-", formatCounts(nil))
	assert.Equal(t, "Closed=1,Open=2", formatCounts(map[string]int{"Open": 2, "Closed": 1}))
}
