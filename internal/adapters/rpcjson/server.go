package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/cmdb/internal/application"
	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/rs/zerolog"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeNotFound       = -32004
)

type Server struct {
	service  *application.CMDBService
	log      zerolog.Logger
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type idParams struct {
	ID string `json:"id"`
}

// Start listens on a unix socket and serves line-delimited JSON-RPC 2.0,
// one goroutine per connection.
func Start(path string, service *application.CMDBService, log zerolog.Logger) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, log: log, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}, ID: nil})
			return
		}

		start := time.Now()
		resp := s.dispatch(context.Background(), req)
		ev := s.log.Debug()
		if resp.Error != nil {
			ev = s.log.Info().Int("code", resp.Error.Code)
		}
		ev.Str("method", req.Method).Dur("duration", time.Since(start)).Msg("rpc call")

		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: codeInvalidRequest, Message: "invalid request"}, ID: req.ID}
	}

	switch req.Method {
	case "health":
		return result(req.ID, map[string]any{"status": "OK", "timestamp": time.Now().UTC().Format(time.RFC3339Nano)})

	case "cis.list":
		out, err := s.service.ListCIs(ctx)
		return s.reply(req, out, err)
	case "cis.get":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.GetCI(ctx, p.ID)
		return s.reply(req, out, err)
	case "cis.create":
		var p domain.ConfigurationItem
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		if p.Status == "" {
			p.Status = domain.CIStatusActive
		}
		out, err := s.service.CreateCI(ctx, p)
		return s.reply(req, out, err)
	case "cis.update":
		var p struct {
			ID    string         `json:"id"`
			Patch domain.CIPatch `json:"patch"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.UpdateCI(ctx, p.ID, p.Patch)
		return s.reply(req, out, err)
	case "cis.delete":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		err := s.service.DeleteCI(ctx, p.ID)
		return s.reply(req, map[string]any{"success": true, "message": "Configuration item deleted"}, err)
	case "cis.relationships":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListRelationships(ctx, p.ID)
		return s.reply(req, out, err)
	case "cis.tickets":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CITickets(ctx, p.ID)
		return s.reply(req, out, err)
	case "cis.topology":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.Topology(ctx, p.ID)
		return s.reply(req, out, err)

	case "relationships.create":
		var p domain.CIRelationship
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateRelationship(ctx, p)
		return s.reply(req, out, err)
	case "relationships.delete":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		err := s.service.DeleteRelationship(ctx, p.ID)
		return s.reply(req, map[string]any{"success": true, "message": "Relationship deleted"}, err)

	case "tickets.list":
		var p domain.TicketFilter
		if len(req.Params) > 0 && !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListTickets(ctx, p)
		return s.reply(req, out, err)
	case "tickets.get":
		var p idParams
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.GetTicket(ctx, p.ID)
		return s.reply(req, out, err)
	case "tickets.create":
		var p domain.Ticket
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateTicket(ctx, p)
		return s.reply(req, out, err)
	case "tickets.update":
		var p struct {
			ID    string             `json:"id"`
			Patch domain.TicketPatch `json:"patch"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.UpdateTicket(ctx, p.ID, p.Patch)
		return s.reply(req, out, err)

	case "sla.list":
		out, err := s.service.ListSLAMetrics(ctx)
		return s.reply(req, out, err)
	case "sla.create":
		var p domain.SLAMetric
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateSLAMetric(ctx, p)
		return s.reply(req, out, err)

	case "dashboard":
		out, err := s.service.Dashboard(ctx)
		return s.reply(req, out, err)

	case "users.create":
		var p struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateUser(ctx, p.Username, p.Password)
		return s.reply(req, out, err)

	case "users.verify":
		var p struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.VerifyPassword(ctx, p.Username, p.Password)
		return s.reply(req, out, err)

	case "audit.list":
		var p struct {
			Limit int `json:"limit"`
		}
		if len(req.Params) > 0 && !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListAuditLogs(ctx, p.Limit)
		return s.reply(req, out, err)
	}

	return response{JSONRPC: "2.0", Error: &rpcError{Code: codeMethodNotFound, Message: "method not found"}, ID: req.ID}
}

func (s *Server) reply(req request, out any, err error) response {
	switch {
	case err == nil:
		return result(req.ID, out)
	case errors.Is(err, domain.ErrNotFound):
		return response{JSONRPC: "2.0", Error: &rpcError{Code: codeNotFound, Message: "not found"}, ID: req.ID}
	case errors.Is(err, domain.ErrInvalidInput):
		return response{JSONRPC: "2.0", Error: &rpcError{Code: codeInvalidParams, Message: err.Error()}, ID: req.ID}
	default:
		s.log.Error().Err(err).Str("method", req.Method).Msg("rpc call failed")
		return response{JSONRPC: "2.0", Error: &rpcError{Code: codeInternal, Message: "internal error"}, ID: req.ID}
	}
}

func result(id any, out any) response {
	return response{JSONRPC: "2.0", Result: out, ID: id}
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: codeInvalidParams, Message: "invalid params"}, ID: id}
}
