package rpcjson

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/atvirokodosprendimai/cmdb/internal/adapters/db/sqlstore"
	"github.com/atvirokodosprendimai/cmdb/internal/application"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callResult struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func startTestServer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "rpc_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlstore.RunMigrations(ctx, db))
	service := application.NewCMDBService(sqlstore.NewRepository(db), zerolog.Nop())

	// unix socket paths are length limited, keep it short
	dir, err := os.MkdirTemp("", "cmdbrpc")
	require.NoError(t, err)
	socket := filepath.Join(dir, "rpc.sock")

	srv, err := Start(socket, service, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = srv.Close()
		_ = os.RemoveAll(dir)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return socket
}

func call(t *testing.T, conn net.Conn, reader *bufio.Reader, method string, params any) callResult {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "method": method, "id": 1}
	if params != nil {
		req["params"] = params
	}
	require.NoError(t, json.NewEncoder(conn).Encode(req))

	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)
	var out callResult
	require.NoError(t, json.Unmarshal(line, &out))
	return out
}

func TestRPCRoundTrip(t *testing.T) {
	socket := startTestServer(t)
	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	reader := bufio.NewReader(conn)

	created := call(t, conn, reader, "cis.create", map[string]any{"name": "WEB-01", "type": "Server"})
	require.Nil(t, created.Error)
	var ci struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(created.Result, &ci))
	assert.Equal(t, "Active", ci.Status)

	updated := call(t, conn, reader, "cis.update", map[string]any{"id": ci.ID, "patch": map[string]any{"status": "Maintenance"}})
	require.Nil(t, updated.Error)

	ticket := call(t, conn, reader, "tickets.create", map[string]any{"title": "disk", "status": "Open", "priority": "High", "ciId": ci.ID})
	require.Nil(t, ticket.Error)

	listed := call(t, conn, reader, "tickets.list", map[string]any{"status": "Open"})
	require.Nil(t, listed.Error)
	var tickets []map[string]any
	require.NoError(t, json.Unmarshal(listed.Result, &tickets))
	assert.Len(t, tickets, 1)

	dash := call(t, conn, reader, "dashboard", nil)
	require.Nil(t, dash.Error)
	var summary struct {
		OpenTickets int `json:"openTickets"`
	}
	require.NoError(t, json.Unmarshal(dash.Result, &summary))
	assert.Equal(t, 1, summary.OpenTickets)

	deleted := call(t, conn, reader, "cis.delete", map[string]any{"id": ci.ID})
	require.Nil(t, deleted.Error)
	again := call(t, conn, reader, "cis.delete", map[string]any{"id": ci.ID})
	require.NotNil(t, again.Error)
	assert.Equal(t, codeNotFound, again.Error.Code)
}

func TestRPCErrors(t *testing.T) {
	socket := startTestServer(t)
	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	reader := bufio.NewReader(conn)

	unknown := call(t, conn, reader, "nope", nil)
	require.NotNil(t, unknown.Error)
	assert.Equal(t, codeMethodNotFound, unknown.Error.Code)

	missing := call(t, conn, reader, "cis.get", nil)
	require.NotNil(t, missing.Error)
	assert.Equal(t, codeInvalidParams, missing.Error.Code)

	invalid := call(t, conn, reader, "cis.create", map[string]any{"name": ""})
	require.NotNil(t, invalid.Error)
	assert.Equal(t, codeInvalidParams, invalid.Error.Code)
}

func TestRPCUserVerify(t *testing.T) {
	socket := startTestServer(t)
	conn, err := net.Dial("unix", socket)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	reader := bufio.NewReader(conn)

	created := call(t, conn, reader, "users.create", map[string]any{"username": "ops", "password": "hunter2"})
	require.Nil(t, created.Error)

	ok := call(t, conn, reader, "users.verify", map[string]any{"username": "ops", "password": "hunter2"})
	require.Nil(t, ok.Error)
	var u map[string]any
	require.NoError(t, json.Unmarshal(ok.Result, &u))
	assert.Equal(t, "ops", u["username"])
	assert.NotContains(t, u, "passwordHash")

	wrong := call(t, conn, reader, "users.verify", map[string]any{"username": "ops", "password": "nope"})
	require.NotNil(t, wrong.Error)
	assert.Equal(t, codeInvalidParams, wrong.Error.Code)

	unknown := call(t, conn, reader, "users.verify", map[string]any{"username": "ghost", "password": "x"})
	require.NotNil(t, unknown.Error)
	assert.Equal(t, codeNotFound, unknown.Error.Code)
}
