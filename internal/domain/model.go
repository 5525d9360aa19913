package domain

import (
	"encoding/json"
	"slices"
	"time"
)

const (
	CIStatusActive         = "Active"
	CIStatusMaintenance    = "Maintenance"
	CIStatusInactive       = "Inactive"
	CIStatusDecommissioned = "Decommissioned"
)

// CIStatuses lists every lifecycle state a configuration item may be in.
var CIStatuses = []string{CIStatusActive, CIStatusMaintenance, CIStatusInactive, CIStatusDecommissioned}

func ValidCIStatus(status string) bool {
	return slices.Contains(CIStatuses, status)
}

const (
	TicketStatusOpen       = "Open"
	TicketStatusInProgress = "In Progress"
	TicketStatusResolved   = "Resolved"
	TicketStatusClosed     = "Closed"
)

const (
	RelationDependsOn  = "depends_on"
	RelationConnectsTo = "connects_to"
	RelationHostedOn   = "hosted_on"
)

type ConfigurationItem struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	Location        string          `json:"location"`
	Hostname        string          `json:"hostname"`
	IPAddress       string          `json:"ipAddress"`
	Environment     string          `json:"environment"`
	BusinessService string          `json:"businessService"`
	Owner           string          `json:"owner"`
	OperatingSystem string          `json:"operatingSystem"`
	Metadata        json.RawMessage `json:"metadata"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// CIPatch carries the fields of a partial CI update. Nil fields are left
// untouched.
type CIPatch struct {
	Name            *string         `json:"name,omitempty"`
	Type            *string         `json:"type,omitempty"`
	Status          *string         `json:"status,omitempty"`
	Location        *string         `json:"location,omitempty"`
	Hostname        *string         `json:"hostname,omitempty"`
	IPAddress       *string         `json:"ipAddress,omitempty"`
	Environment     *string         `json:"environment,omitempty"`
	BusinessService *string         `json:"businessService,omitempty"`
	Owner           *string         `json:"owner,omitempty"`
	OperatingSystem *string         `json:"operatingSystem,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

type CIRelationship struct {
	ID               string    `json:"id"`
	SourceID         string    `json:"sourceId"`
	TargetID         string    `json:"targetId"`
	RelationshipType string    `json:"relationshipType"`
	CreatedAt        time.Time `json:"createdAt"`
}

type Ticket struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	CIID        *string   `json:"ciId"`
	Assignee    string    `json:"assignee"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type TicketPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	CIID        *string `json:"ciId,omitempty"`
	Assignee    *string `json:"assignee,omitempty"`
}

// TicketFilter narrows ticket reads. Every non-nil field is an equality
// predicate and all predicates must hold.
type TicketFilter struct {
	Status   *string `json:"status,omitempty"`
	Priority *string `json:"priority,omitempty"`
	CIID     *string `json:"ciId,omitempty"`
}

type SLAMetric struct {
	ID          string    `json:"id"`
	CIID        *string   `json:"ciId"`
	ServiceName string    `json:"serviceName"`
	MetricName  string    `json:"metricName"`
	TargetValue float64   `json:"targetValue"`
	ActualValue float64   `json:"actualValue"`
	Breached    bool      `json:"breached"`
	MeasuredAt  time.Time `json:"measuredAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	TargetType string    `json:"targetType"`
	TargetID   string    `json:"targetId"`
	Metadata   string    `json:"metadata"`
	CreatedAt  time.Time `json:"createdAt"`
}

type DashboardSummary struct {
	TotalCIs          int                 `json:"totalCIs"`
	TotalTickets      int                 `json:"totalTickets"`
	OpenTickets       int                 `json:"openTickets"`
	BreachedSLAs      int                 `json:"breachedSLAs"`
	TicketsByStatus   map[string]int      `json:"ticketsByStatus"`
	TicketsByPriority map[string]int      `json:"ticketsByPriority"`
	RecentTickets     []Ticket            `json:"recentTickets"`
	RecentCIs         []ConfigurationItem `json:"recentCIs"`
}
