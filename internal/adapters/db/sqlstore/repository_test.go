package sqlstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "cmdb_test.db"))
	require.NoError(t, err, "open db")
	require.NoError(t, RunMigrations(ctx, db), "run migrations")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewRepository(db)
}

func ptr(s string) *string { return &s }

func TestConfigurationItemLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := t0
	repo.now = func() time.Time { return clock }

	created, err := repo.CreateCI(ctx, domain.ConfigurationItem{
		Name:        "WEB-01",
		Type:        "Server",
		Status:      domain.CIStatusActive,
		Location:    "DC-East",
		Environment: "Production",
		Metadata:    json.RawMessage(`{"rack":"A3"}`),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	got, err := repo.GetCI(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "WEB-01", got.Name)
	assert.JSONEq(t, `{"rack":"A3"}`, string(got.Metadata))

	assert.True(t, created.UpdatedAt.Equal(t0))

	clock = t0.Add(time.Second)
	updated, err := repo.UpdateCI(ctx, created.ID, domain.CIPatch{Status: ptr(domain.CIStatusMaintenance)})
	require.NoError(t, err)
	assert.Equal(t, domain.CIStatusMaintenance, updated.Status)
	assert.Equal(t, "DC-East", updated.Location, "fields outside the patch are kept")
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt), "updatedAt advances on update")
	assert.True(t, updated.UpdatedAt.Equal(clock))
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt), "createdAt is fixed")

	deleted, err := repo.DeleteCI(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteCI(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "second delete finds nothing")

	_, err = repo.GetCI(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateUnknownRowsReportsNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.UpdateCI(ctx, "missing", domain.CIPatch{Name: ptr("x")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.UpdateTicket(ctx, "missing", domain.TicketPatch{Status: ptr(domain.TicketStatusClosed)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetTicket(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListTicketsCombinesFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	ci, err := repo.CreateCI(ctx, domain.ConfigurationItem{Name: "DB-01", Type: "Database", Status: domain.CIStatusActive})
	require.NoError(t, err)

	seed := []domain.Ticket{
		{Title: "disk full", Status: domain.TicketStatusOpen, Priority: "High", CIID: &ci.ID},
		{Title: "slow queries", Status: domain.TicketStatusOpen, Priority: "Low"},
		{Title: "cert expired", Status: domain.TicketStatusResolved, Priority: "High"},
	}
	for _, tk := range seed {
		_, err := repo.CreateTicket(ctx, tk)
		require.NoError(t, err)
	}

	all, err := repo.ListTickets(ctx, domain.TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	both, err := repo.ListTickets(ctx, domain.TicketFilter{Status: ptr(domain.TicketStatusOpen), Priority: ptr("High")})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "disk full", both[0].Title)

	byCI, err := repo.ListTickets(ctx, domain.TicketFilter{CIID: &ci.ID})
	require.NoError(t, err)
	require.Len(t, byCI, 1)

	none, err := repo.ListTickets(ctx, domain.TicketFilter{Status: ptr(domain.TicketStatusClosed)})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeletingCICascadesRelationshipsAndDetachesTickets(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	app, err := repo.CreateCI(ctx, domain.ConfigurationItem{Name: "APP-01", Type: "VM", Status: domain.CIStatusActive})
	require.NoError(t, err)
	db, err := repo.CreateCI(ctx, domain.ConfigurationItem{Name: "DB-01", Type: "Database", Status: domain.CIStatusActive})
	require.NoError(t, err)

	rel, err := repo.CreateRelationship(ctx, domain.CIRelationship{SourceID: app.ID, TargetID: db.ID, RelationshipType: domain.RelationDependsOn})
	require.NoError(t, err)

	_, err = repo.CreateRelationship(ctx, domain.CIRelationship{SourceID: app.ID, TargetID: db.ID, RelationshipType: domain.RelationDependsOn})
	assert.Error(t, err, "duplicate relationship is rejected")

	ticket, err := repo.CreateTicket(ctx, domain.Ticket{Title: "replica lag", Status: domain.TicketStatusOpen, Priority: "Medium", CIID: &db.ID})
	require.NoError(t, err)

	rels, err := repo.ListRelationships(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, rel.ID, rels[0].ID)

	deleted, err := repo.DeleteCI(ctx, db.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	rels, err = repo.ListRelationships(ctx, app.ID)
	require.NoError(t, err)
	assert.Empty(t, rels)

	got, err := repo.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CIID)
}

func TestSLAMetricsAndAudit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	_, err := repo.CreateSLAMetric(ctx, domain.SLAMetric{ServiceName: "checkout", MetricName: "uptime", TargetValue: 99.9, ActualValue: 98.7, Breached: true})
	require.NoError(t, err)
	_, err = repo.CreateSLAMetric(ctx, domain.SLAMetric{ServiceName: "checkout", MetricName: "latency_p95", TargetValue: 300, ActualValue: 120})
	require.NoError(t, err)

	metrics, err := repo.ListSLAMetrics(ctx)
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	assert.True(t, metrics[0].Breached)
	assert.False(t, metrics[1].Breached)
	assert.False(t, metrics[0].MeasuredAt.IsZero())

	require.NoError(t, repo.CreateAuditLog(ctx, domain.AuditLog{Action: "ci.create", TargetType: "ci", TargetID: "x"}))
	logs, err := repo.ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "ci.create", logs[0].Action)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	u, err := repo.CreateUser(ctx, domain.User{Username: "ops", PasswordHash: "hash"})
	require.NoError(t, err)

	byName, err := repo.GetUserByUsername(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = repo.CreateUser(ctx, domain.User{Username: "ops", PasswordHash: "other"})
	assert.Error(t, err, "usernames are unique")

	_, err = repo.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
