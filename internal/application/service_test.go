package application

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/cmdb/internal/adapters/db/sqlstore"
	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *CMDBService {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "service_test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlstore.RunMigrations(ctx, db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return NewCMDBService(sqlstore.NewRepository(db), zerolog.Nop())
}

func TestDashboardCountsOpenTicketsAndBreaches(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	empty, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.OpenTickets)
	assert.Zero(t, empty.TotalTickets)
	assert.Empty(t, empty.RecentTickets)

	_, err = svc.CreateCI(ctx, domain.ConfigurationItem{Name: "WEB-01", Type: "Server", Status: domain.CIStatusActive})
	require.NoError(t, err)

	statuses := []string{domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed, domain.TicketStatusOpen}
	for i, status := range statuses {
		priority := "Low"
		if i%2 == 0 {
			priority = "High"
		}
		_, err := svc.CreateTicket(ctx, domain.Ticket{Title: "t", Status: status, Priority: priority})
		require.NoError(t, err)
	}

	_, err = svc.CreateSLAMetric(ctx, domain.SLAMetric{MetricName: "uptime", Breached: true})
	require.NoError(t, err)
	_, err = svc.CreateSLAMetric(ctx, domain.SLAMetric{MetricName: "latency"})
	require.NoError(t, err)

	summary, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalCIs)
	assert.Equal(t, 5, summary.TotalTickets)
	assert.Equal(t, 3, summary.OpenTickets)
	assert.Equal(t, 1, summary.BreachedSLAs)
	assert.Equal(t, 2, summary.TicketsByStatus[domain.TicketStatusOpen])
	assert.Equal(t, 3, summary.TicketsByPriority["High"])
}

func TestSummarizeKeepsTenMostRecentlyUpdated(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tickets := make([]domain.Ticket, 0, 12)
	for i := 0; i < 12; i++ {
		tickets = append(tickets, domain.Ticket{ID: string(rune('a' + i)), Status: domain.TicketStatusClosed, UpdatedAt: base.Add(time.Duration(i) * time.Hour)})
	}

	summary := Summarize(nil, tickets, nil)
	require.Len(t, summary.RecentTickets, 10)
	assert.Equal(t, "l", summary.RecentTickets[0].ID)
	assert.Equal(t, "c", summary.RecentTickets[9].ID)
	assert.Zero(t, summary.OpenTickets)
	assert.Equal(t, "a", tickets[0].ID, "input order is untouched")
}

func TestCreateRelationshipChecksEndpoints(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	app, err := svc.CreateCI(ctx, domain.ConfigurationItem{Name: "APP-01", Type: "VM", Status: domain.CIStatusActive})
	require.NoError(t, err)

	_, err = svc.CreateRelationship(ctx, domain.CIRelationship{SourceID: app.ID, TargetID: app.ID, RelationshipType: domain.RelationDependsOn})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateRelationship(ctx, domain.CIRelationship{SourceID: app.ID, TargetID: "missing", RelationshipType: domain.RelationDependsOn})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = svc.DeleteRelationship(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateRelationshipRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	app, err := svc.CreateCI(ctx, domain.ConfigurationItem{Name: "APP-01", Type: "VM"})
	require.NoError(t, err)
	db, err := svc.CreateCI(ctx, domain.ConfigurationItem{Name: "DB-01", Type: "Database"})
	require.NoError(t, err)

	rel := domain.CIRelationship{SourceID: app.ID, TargetID: db.ID, RelationshipType: domain.RelationDependsOn}
	_, err = svc.CreateRelationship(ctx, rel)
	require.NoError(t, err)

	_, err = svc.CreateRelationship(ctx, rel)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorContains(t, err, "already exists")

	// Same endpoints with another type is a distinct edge.
	_, err = svc.CreateRelationship(ctx, domain.CIRelationship{SourceID: app.ID, TargetID: db.ID, RelationshipType: domain.RelationConnectsTo})
	require.NoError(t, err)

	rels, err := svc.ListRelationships(ctx, app.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 2)
}

func TestCIRulesApplyWithoutTransport(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	invalid := []domain.ConfigurationItem{
		{Name: "   ", Type: "Server"},
		{Name: "WEB-01", Type: "\t"},
		{Name: "WEB-01", Type: "Server", Status: "Broken"},
		{Name: "WEB-01", Type: "Server", IPAddress: "nope"},
		{Name: "WEB-01", Type: "Server", Metadata: []byte(`[1]`)},
	}
	for _, ci := range invalid {
		_, err := svc.CreateCI(ctx, ci)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%+v", ci)
	}

	created, err := svc.CreateCI(ctx, domain.ConfigurationItem{Name: "WEB-01", Type: "Server", IPAddress: "2001:db8::1"})
	require.NoError(t, err)
	assert.Equal(t, domain.CIStatusActive, created.Status)

	blank, broken, badIP := " ", "Retired", "300.1.1.1"
	for _, patch := range []domain.CIPatch{{Name: &blank}, {Type: &blank}, {Status: &broken}, {IPAddress: &badIP}} {
		_, err := svc.UpdateCI(ctx, created.ID, patch)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}

	empty, maint := "", domain.CIStatusMaintenance
	updated, err := svc.UpdateCI(ctx, created.ID, domain.CIPatch{Status: &maint, IPAddress: &empty})
	require.NoError(t, err)
	assert.Equal(t, domain.CIStatusMaintenance, updated.Status)
	assert.Empty(t, updated.IPAddress)
	assert.Equal(t, "WEB-01", updated.Name)
}

func TestTopologyLaysOutOutgoingRelations(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	app, err := svc.CreateCI(ctx, domain.ConfigurationItem{Name: "APP-01", Type: "VM", Status: domain.CIStatusActive})
	require.NoError(t, err)
	db, err := svc.CreateCI(ctx, domain.ConfigurationItem{Name: "DB-01", Type: "Database", Status: domain.CIStatusActive})
	require.NoError(t, err)
	host, err := svc.CreateCI(ctx, domain.ConfigurationItem{Name: "HV-01", Type: "Server", Status: domain.CIStatusMaintenance})
	require.NoError(t, err)

	_, err = svc.CreateRelationship(ctx, domain.CIRelationship{SourceID: app.ID, TargetID: db.ID, RelationshipType: domain.RelationDependsOn})
	require.NoError(t, err)
	_, err = svc.CreateRelationship(ctx, domain.CIRelationship{SourceID: app.ID, TargetID: host.ID, RelationshipType: domain.RelationHostedOn})
	require.NoError(t, err)

	layout, err := svc.Topology(ctx, app.ID)
	require.NoError(t, err)
	assert.Len(t, layout.Nodes, 3)
	assert.Len(t, layout.Links, 2)

	single, err := svc.Topology(ctx, db.ID)
	require.NoError(t, err)
	assert.Len(t, single.Nodes, 1)
	assert.Empty(t, single.Links)

	_, err = svc.Topology(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMutationsLeaveAuditTrail(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	ci, err := svc.CreateCI(ctx, domain.ConfigurationItem{Name: "SW-01", Type: "Network", Status: domain.CIStatusActive})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCI(ctx, ci.ID))
	assert.ErrorIs(t, svc.DeleteCI(ctx, ci.ID), domain.ErrNotFound)

	logs, err := svc.ListAuditLogs(ctx, 0)
	require.NoError(t, err)
	actions := make([]string, 0, len(logs))
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.ElementsMatch(t, []string{"ci.create", "ci.delete"}, actions)
}

func TestTicketRejectsUnknownCI(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	missing := "missing"
	_, err := svc.CreateTicket(ctx, domain.Ticket{Title: "t", Status: domain.TicketStatusOpen, Priority: "High", CIID: &missing})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBootstrapUserRunsOnce(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.BootstrapUser(ctx, "admin", "s3cret"))
	require.NoError(t, svc.BootstrapUser(ctx, "someone-else", "other"))

	u, err := svc.VerifyPassword(ctx, "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)

	_, err = svc.VerifyPassword(ctx, "admin", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.VerifyPassword(ctx, "someone-else", "other")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type failingMetricsRepo struct {
	domain.CMDBRepository
	err error
}

func (r failingMetricsRepo) ListCIs(context.Context) ([]domain.ConfigurationItem, error) {
	return []domain.ConfigurationItem{{ID: "web", Name: "WEB-01"}}, nil
}

func (r failingMetricsRepo) ListTickets(context.Context, domain.TicketFilter) ([]domain.Ticket, error) {
	return []domain.Ticket{{ID: "t1", Status: domain.TicketStatusOpen}}, nil
}

func (r failingMetricsRepo) ListSLAMetrics(context.Context) ([]domain.SLAMetric, error) {
	return nil, r.err
}

func TestDashboardFailsWholeOnAnyReadError(t *testing.T) {
	readErr := errors.New("list sla metrics: driver: connection refused")
	svc := NewCMDBService(failingMetricsRepo{err: readErr}, zerolog.Nop())

	summary, err := svc.Dashboard(context.Background())
	require.ErrorIs(t, err, readErr)
	assert.Equal(t, domain.DashboardSummary{}, summary)
}
