package main

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/atvirokodosprendimai/cmdb/internal/topology"
)

func doHealth(ctx context.Context, cfg cliConfig) (map[string]any, error) {
	var out map[string]any
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "health", nil, &out)
		return out, err
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

func doCIsList(ctx context.Context, cfg cliConfig) ([]domain.ConfigurationItem, error) {
	var out []domain.ConfigurationItem
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "cis.list", nil, &out)
		return out, err
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodGet, "/api/cis", nil, &out)
	return out, err
}

func doCIGet(ctx context.Context, cfg cliConfig, id string) (domain.ConfigurationItem, error) {
	var out domain.ConfigurationItem
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "cis.get", map[string]any{"id": id}, &out)
		return out, err
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodGet, "/api/cis/"+url.PathEscape(id), nil, &out)
	return out, err
}

func doCICreate(ctx context.Context, cfg cliConfig, item domain.ConfigurationItem) (domain.ConfigurationItem, error) {
	var out domain.ConfigurationItem
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "cis.create", item, &out)
		return out, err
	}
	body := map[string]any{"name": item.Name, "type": item.Type}
	optional := map[string]string{
		"status":          item.Status,
		"location":        item.Location,
		"hostname":        item.Hostname,
		"ipAddress":       item.IPAddress,
		"environment":     item.Environment,
		"businessService": item.BusinessService,
		"owner":           item.Owner,
		"operatingSystem": item.OperatingSystem,
	}
	for k, v := range optional {
		if v != "" {
			body[k] = v
		}
	}
	if len(item.Metadata) > 0 {
		body["metadata"] = item.Metadata
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodPost, "/api/cis", body, &out)
	return out, err
}

func doCIUpdate(ctx context.Context, cfg cliConfig, id string, patch domain.CIPatch) (domain.ConfigurationItem, error) {
	var out domain.ConfigurationItem
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "cis.update", map[string]any{"id": id, "patch": patch}, &out)
		return out, err
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodPut, "/api/cis/"+url.PathEscape(id), patch, &out)
	return out, err
}

func doCIDelete(ctx context.Context, cfg cliConfig, id string) error {
	if cfg.Transport == transportUDS {
		return newRPCClient(cfg.Socket).call(ctx, "cis.delete", map[string]any{"id": id}, nil)
	}
	return newAPIClient(cfg.Server).request(ctx, http.MethodDelete, "/api/cis/"+url.PathEscape(id), nil, nil)
}

func doCIRelationships(ctx context.Context, cfg cliConfig, id string) ([]domain.CIRelationship, error) {
	var out []domain.CIRelationship
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "cis.relationships", map[string]any{"id": id}, &out)
		return out, err
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodGet, "/api/cis/"+url.PathEscape(id)+"/relationships", nil, &out)
	return out, err
}

func doRelationshipCreate(ctx context.Context, cfg cliConfig, sourceID, targetID, relType string) (domain.CIRelationship, error) {
	var out domain.CIRelationship
	body := map[string]any{"sourceId": sourceID, "targetId": targetID, "relationshipType": relType}
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "relationships.create", body, &out)
		return out, err
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodPost, "/api/relationships", body, &out)
	return out, err
}

func doRelationshipDelete(ctx context.Context, cfg cliConfig, id string) error {
	if cfg.Transport == transportUDS {
		return newRPCClient(cfg.Socket).call(ctx, "relationships.delete", map[string]any{"id": id}, nil)
	}
	return newAPIClient(cfg.Server).request(ctx, http.MethodDelete, "/api/relationships/"+url.PathEscape(id), nil, nil)
}

func doTicketsList(ctx context.Context, cfg cliConfig, filter domain.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "tickets.list", filter, &out)
		return out, err
	}
	q := url.Values{}
	if filter.Status != nil {
		q.Set("status", *filter.Status)
	}
	if filter.Priority != nil {
		q.Set("priority", *filter.Priority)
	}
	if filter.CIID != nil {
		q.Set("ciId", *filter.CIID)
	}
	path := "/api/tickets"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func doTicketCreate(ctx context.Context, cfg cliConfig, ticket domain.Ticket) (domain.Ticket, error) {
	var out domain.Ticket
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "tickets.create", ticket, &out)
		return out, err
	}
	body := map[string]any{"title": ticket.Title, "priority": ticket.Priority}
	if ticket.Description != "" {
		body["description"] = ticket.Description
	}
	if ticket.Status != "" {
		body["status"] = ticket.Status
	}
	if ticket.Assignee != "" {
		body["assignee"] = ticket.Assignee
	}
	if ticket.CIID != nil {
		body["ciId"] = *ticket.CIID
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodPost, "/api/tickets", body, &out)
	return out, err
}

func doTicketUpdate(ctx context.Context, cfg cliConfig, id string, patch domain.TicketPatch) (domain.Ticket, error) {
	var out domain.Ticket
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "tickets.update", map[string]any{"id": id, "patch": patch}, &out)
		return out, err
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodPut, "/api/tickets/"+url.PathEscape(id), patch, &out)
	return out, err
}

func doSLAList(ctx context.Context, cfg cliConfig) ([]domain.SLAMetric, error) {
	var out []domain.SLAMetric
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "sla.list", nil, &out)
		return out, err
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodGet, "/api/sla-metrics", nil, &out)
	return out, err
}

func doSLACreate(ctx context.Context, cfg cliConfig, metric domain.SLAMetric) (domain.SLAMetric, error) {
	var out domain.SLAMetric
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "sla.create", metric, &out)
		return out, err
	}
	body := map[string]any{
		"metricName":  metric.MetricName,
		"targetValue": metric.TargetValue,
		"actualValue": metric.ActualValue,
		"breached":    metric.Breached,
	}
	if metric.ServiceName != "" {
		body["serviceName"] = metric.ServiceName
	}
	if metric.CIID != nil {
		body["ciId"] = *metric.CIID
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodPost, "/api/sla-metrics", body, &out)
	return out, err
}

func doDashboard(ctx context.Context, cfg cliConfig) (domain.DashboardSummary, error) {
	var out domain.DashboardSummary
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "dashboard", nil, &out)
		return out, err
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodGet, "/api/dashboard", nil, &out)
	return out, err
}

func doTopology(ctx context.Context, cfg cliConfig, id string) (topology.Layout, error) {
	var out topology.Layout
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "cis.topology", map[string]any{"id": id}, &out)
		return out, err
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodGet, "/api/cis/"+url.PathEscape(id)+"/topology", nil, &out)
	return out, err
}

func doAuditList(ctx context.Context, cfg cliConfig, limit int) ([]domain.AuditLog, error) {
	var out []domain.AuditLog
	if cfg.Transport == transportUDS {
		err := newRPCClient(cfg.Socket).call(ctx, "audit.list", map[string]any{"limit": limit}, &out)
		return out, err
	}
	path := "/api/audit"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	err := newAPIClient(cfg.Server).request(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// doUserCreate is only served over the unix socket; the HTTP API has no
// user management surface.
func doUserCreate(ctx context.Context, cfg cliConfig, username, password string) (domain.User, error) {
	var out domain.User
	err := newRPCClient(cfg.Socket).call(ctx, "users.create", map[string]any{"username": username, "password": password}, &out)
	return out, err
}

func doUserVerify(ctx context.Context, cfg cliConfig, username, password string) (domain.User, error) {
	var out domain.User
	err := newRPCClient(cfg.Socket).call(ctx, "users.verify", map[string]any{"username": username, "password": password}, &out)
	return out, err
}
