package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

const rpcCallTimeout = 20 * time.Second

// rpcNotFound mirrors the server's code for domain.ErrNotFound.
const rpcNotFound = -32004

var rpcSeq atomic.Int64

type rpcClient struct {
	socket string
}

type rpcCall struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int64  `json:"id"`
}

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     int64           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	if e.Code == rpcNotFound {
		return "not found"
	}
	return fmt.Sprintf("rpc error (%d): %s", e.Code, e.Message)
}

func newRPCClient(socket string) *rpcClient {
	return &rpcClient{socket: socket}
}

// call sends one request on a fresh connection and decodes the result into
// out. A non-nil reply error is returned as *rpcError.
func (c *rpcClient) call(ctx context.Context, method string, params any, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rpcCallTimeout)
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socket)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.socket, err)
	}
	defer func() { _ = conn.Close() }()
	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)

	id := rpcSeq.Add(1)
	if err := json.NewEncoder(conn).Encode(rpcCall{JSONRPC: "2.0", Method: method, Params: params, ID: id}); err != nil {
		return err
	}

	var reply rpcReply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if reply.Error != nil {
		return reply.Error
	}
	if reply.ID != id {
		return fmt.Errorf("%s: reply id %d does not match request %d", method, reply.ID, id)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(reply.Result, out)
}
