package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

type CMDBRepository interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, value User) (User, error)
	CountUsers(ctx context.Context) (int64, error)

	ListCIs(ctx context.Context) ([]ConfigurationItem, error)
	GetCI(ctx context.Context, id string) (ConfigurationItem, error)
	GetCIsByIDs(ctx context.Context, ids []string) ([]ConfigurationItem, error)
	CreateCI(ctx context.Context, value ConfigurationItem) (ConfigurationItem, error)
	UpdateCI(ctx context.Context, id string, patch CIPatch) (ConfigurationItem, error)
	DeleteCI(ctx context.Context, id string) (bool, error)

	ListTickets(ctx context.Context, filter TicketFilter) ([]Ticket, error)
	GetTicket(ctx context.Context, id string) (Ticket, error)
	CreateTicket(ctx context.Context, value Ticket) (Ticket, error)
	UpdateTicket(ctx context.Context, id string, patch TicketPatch) (Ticket, error)

	ListSLAMetrics(ctx context.Context) ([]SLAMetric, error)
	CreateSLAMetric(ctx context.Context, value SLAMetric) (SLAMetric, error)

	ListRelationships(ctx context.Context, sourceID string) ([]CIRelationship, error)
	CreateRelationship(ctx context.Context, value CIRelationship) (CIRelationship, error)
	DeleteRelationship(ctx context.Context, id string) (bool, error)

	CreateAuditLog(ctx context.Context, value AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]AuditLog, error)
}
