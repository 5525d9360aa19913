package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveOnce answers every request on a unix socket with reply(method).
func serveOnce(t *testing.T, reply func(method string) map[string]any) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "cmdbcli")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	path := filepath.Join(dir, "rpc.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			var req struct {
				Method string `json:"method"`
				ID     int64  `json:"id"`
			}
			if err := json.NewDecoder(conn).Decode(&req); err == nil {
				resp := reply(req.Method)
				resp["jsonrpc"] = "2.0"
				resp["id"] = req.ID
				_ = json.NewEncoder(conn).Encode(resp)
			}
			_ = conn.Close()
		}
	}()
	return path
}

func TestRPCClientCall(t *testing.T) {
	socket := serveOnce(t, func(method string) map[string]any {
		switch method {
		case "cis.get":
			return map[string]any{"error": map[string]any{"code": rpcNotFound, "message": "not found"}}
		case "dashboard":
			return map[string]any{"result": map[string]any{"totalCIs": 2, "openTickets": 1}}
		case "users.verify":
			return map[string]any{"error": map[string]any{"code": -32602, "message": "invalid input: invalid credentials"}}
		default:
			return map[string]any{"error": map[string]any{"code": -32601, "message": "method not found"}}
		}
	})
	cfg := cliConfig{Transport: transportUDS, Socket: socket}
	ctx := context.Background()

	summary, err := doDashboard(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalCIs)
	assert.Equal(t, 1, summary.OpenTickets)

	_, err = doCIGet(ctx, cfg, "missing")
	var rpcErr *rpcError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, rpcNotFound, rpcErr.Code)
	assert.Equal(t, "not found", err.Error())

	_, err = doUserVerify(ctx, cfg, "ops", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")

	err = newRPCClient(socket).call(ctx, "bogus", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(-32601)")
}

func TestRPCClientDialError(t *testing.T) {
	err := newRPCClient(filepath.Join(t.TempDir(), "absent.sock")).call(context.Background(), "health", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial")
}
