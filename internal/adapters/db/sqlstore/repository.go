package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to the store selected by driver. SQLite paths get foreign
// keys and WAL switched on unless the DSN already carries parameters.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		return gorm.Open(sqlite.Dialector{
			DriverName: "sqlite",
			DSN:        sqliteDSN(dsn),
		}, cfg)
	case DriverPostgres:
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }}
}

func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return domain.User{}, storeError("get user", err)
	}
	return toUser(m), nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, "username = ?", username).Error; err != nil {
		return domain.User{}, storeError("get user by username", err)
	}
	return toUser(m), nil
}

func (r *Repository) CreateUser(ctx context.Context, value domain.User) (domain.User, error) {
	now := r.now()
	m := UserModel{
		ID:           uuid.NewString(),
		Username:     value.Username,
		PasswordHash: value.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return toUser(m), nil
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (r *Repository) ListCIs(ctx context.Context) ([]domain.ConfigurationItem, error) {
	rows := make([]ConfigurationItemModel, 0)
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list configuration items: %w", err)
	}
	return toCIs(rows), nil
}

func (r *Repository) GetCI(ctx context.Context, id string) (domain.ConfigurationItem, error) {
	var m ConfigurationItemModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return domain.ConfigurationItem{}, storeError("get configuration item", err)
	}
	return toCI(m), nil
}

func (r *Repository) GetCIsByIDs(ctx context.Context, ids []string) ([]domain.ConfigurationItem, error) {
	if len(ids) == 0 {
		return []domain.ConfigurationItem{}, nil
	}
	rows := make([]ConfigurationItemModel, 0, len(ids))
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get configuration items by ids: %w", err)
	}
	return toCIs(rows), nil
}

func (r *Repository) CreateCI(ctx context.Context, value domain.ConfigurationItem) (domain.ConfigurationItem, error) {
	now := r.now()
	m := ConfigurationItemModel{
		ID:              uuid.NewString(),
		Name:            value.Name,
		Type:            value.Type,
		Status:          defaultString(value.Status, domain.CIStatusActive),
		Location:        value.Location,
		Hostname:        value.Hostname,
		IPAddress:       value.IPAddress,
		Environment:     value.Environment,
		BusinessService: value.BusinessService,
		Owner:           value.Owner,
		OperatingSystem: value.OperatingSystem,
		Metadata:        toJSON(value.Metadata),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.ConfigurationItem{}, fmt.Errorf("create configuration item: %w", err)
	}
	return toCI(m), nil
}

func (r *Repository) UpdateCI(ctx context.Context, id string, patch domain.CIPatch) (domain.ConfigurationItem, error) {
	values := map[string]any{"updated_at": r.now()}
	setString(values, "name", patch.Name)
	setString(values, "type", patch.Type)
	setString(values, "status", patch.Status)
	setString(values, "location", patch.Location)
	setString(values, "hostname", patch.Hostname)
	setString(values, "ip_address", patch.IPAddress)
	setString(values, "environment", patch.Environment)
	setString(values, "business_service", patch.BusinessService)
	setString(values, "owner", patch.Owner)
	setString(values, "operating_system", patch.OperatingSystem)
	if patch.Metadata != nil {
		values["metadata"] = toJSON(patch.Metadata)
	}

	res := r.db.WithContext(ctx).Model(&ConfigurationItemModel{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return domain.ConfigurationItem{}, fmt.Errorf("update configuration item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ConfigurationItem{}, domain.ErrNotFound
	}
	return r.GetCI(ctx, id)
}

func (r *Repository) DeleteCI(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&ConfigurationItemModel{})
	if res.Error != nil {
		return false, fmt.Errorf("delete configuration item: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	q := r.db.WithContext(ctx).Model(&TicketModel{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		q = q.Where("priority = ?", *filter.Priority)
	}
	if filter.CIID != nil {
		q = q.Where("ci_id = ?", *filter.CIID)
	}

	rows := make([]TicketModel, 0)
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	result := make([]domain.Ticket, 0, len(rows))
	for _, m := range rows {
		result = append(result, toTicket(m))
	}
	return result, nil
}

func (r *Repository) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	var m TicketModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return domain.Ticket{}, storeError("get ticket", err)
	}
	return toTicket(m), nil
}

func (r *Repository) CreateTicket(ctx context.Context, value domain.Ticket) (domain.Ticket, error) {
	now := r.now()
	m := TicketModel{
		ID:          uuid.NewString(),
		Title:       value.Title,
		Description: value.Description,
		Status:      defaultString(value.Status, domain.TicketStatusOpen),
		Priority:    value.Priority,
		CIID:        value.CIID,
		Assignee:    value.Assignee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	return toTicket(m), nil
}

func (r *Repository) UpdateTicket(ctx context.Context, id string, patch domain.TicketPatch) (domain.Ticket, error) {
	values := map[string]any{"updated_at": r.now()}
	setString(values, "title", patch.Title)
	setString(values, "description", patch.Description)
	setString(values, "status", patch.Status)
	setString(values, "priority", patch.Priority)
	setString(values, "ci_id", patch.CIID)
	setString(values, "assignee", patch.Assignee)

	res := r.db.WithContext(ctx).Model(&TicketModel{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return domain.Ticket{}, fmt.Errorf("update ticket: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.Ticket{}, domain.ErrNotFound
	}
	return r.GetTicket(ctx, id)
}

func (r *Repository) ListSLAMetrics(ctx context.Context) ([]domain.SLAMetric, error) {
	rows := make([]SLAMetricModel, 0)
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sla metrics: %w", err)
	}
	result := make([]domain.SLAMetric, 0, len(rows))
	for _, m := range rows {
		result = append(result, toSLAMetric(m))
	}
	return result, nil
}

func (r *Repository) CreateSLAMetric(ctx context.Context, value domain.SLAMetric) (domain.SLAMetric, error) {
	now := r.now()
	measuredAt := value.MeasuredAt.UTC()
	if value.MeasuredAt.IsZero() {
		measuredAt = now
	}
	m := SLAMetricModel{
		ID:          uuid.NewString(),
		CIID:        value.CIID,
		ServiceName: value.ServiceName,
		MetricName:  value.MetricName,
		TargetValue: value.TargetValue,
		ActualValue: value.ActualValue,
		Breached:    value.Breached,
		MeasuredAt:  measuredAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.SLAMetric{}, fmt.Errorf("create sla metric: %w", err)
	}
	return toSLAMetric(m), nil
}

func (r *Repository) ListRelationships(ctx context.Context, sourceID string) ([]domain.CIRelationship, error) {
	rows := make([]CIRelationshipModel, 0)
	if err := r.db.WithContext(ctx).Where("source_id = ?", sourceID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	result := make([]domain.CIRelationship, 0, len(rows))
	for _, m := range rows {
		result = append(result, toRelationship(m))
	}
	return result, nil
}

func (r *Repository) CreateRelationship(ctx context.Context, value domain.CIRelationship) (domain.CIRelationship, error) {
	m := CIRelationshipModel{
		ID:               uuid.NewString(),
		SourceID:         value.SourceID,
		TargetID:         value.TargetID,
		RelationshipType: value.RelationshipType,
		CreatedAt:        r.now(),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.CIRelationship{}, fmt.Errorf("create relationship: %w", err)
	}
	return toRelationship(m), nil
}

func (r *Repository) DeleteRelationship(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&CIRelationshipModel{})
	if res.Error != nil {
		return false, fmt.Errorf("delete relationship: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) CreateAuditLog(ctx context.Context, value domain.AuditLog) error {
	m := AuditLogModel{
		ID:         uuid.NewString(),
		Action:     value.Action,
		TargetType: value.TargetType,
		TargetID:   value.TargetID,
		Metadata:   value.Metadata,
		CreatedAt:  r.now(),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func (r *Repository) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	rows := make([]AuditLogModel, 0)
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	result := make([]domain.AuditLog, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.AuditLog{
			ID:         m.ID,
			Action:     m.Action,
			TargetType: m.TargetType,
			TargetID:   m.TargetID,
			Metadata:   m.Metadata,
			CreatedAt:  m.CreatedAt,
		})
	}
	return result, nil
}

func storeError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func setString(values map[string]any, column string, v *string) {
	if v != nil {
		values[column] = *v
	}
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}

func toJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

func toUser(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toCI(m ConfigurationItemModel) domain.ConfigurationItem {
	var metadata json.RawMessage
	if len(m.Metadata) > 0 {
		metadata = json.RawMessage(m.Metadata)
	}
	return domain.ConfigurationItem{
		ID:              m.ID,
		Name:            m.Name,
		Type:            m.Type,
		Status:          m.Status,
		Location:        m.Location,
		Hostname:        m.Hostname,
		IPAddress:       m.IPAddress,
		Environment:     m.Environment,
		BusinessService: m.BusinessService,
		Owner:           m.Owner,
		OperatingSystem: m.OperatingSystem,
		Metadata:        metadata,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toCIs(rows []ConfigurationItemModel) []domain.ConfigurationItem {
	result := make([]domain.ConfigurationItem, 0, len(rows))
	for _, m := range rows {
		result = append(result, toCI(m))
	}
	return result
}

func toTicket(m TicketModel) domain.Ticket {
	return domain.Ticket{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Status:      m.Status,
		Priority:    m.Priority,
		CIID:        m.CIID,
		Assignee:    m.Assignee,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toSLAMetric(m SLAMetricModel) domain.SLAMetric {
	return domain.SLAMetric{
		ID:          m.ID,
		CIID:        m.CIID,
		ServiceName: m.ServiceName,
		MetricName:  m.MetricName,
		TargetValue: m.TargetValue,
		ActualValue: m.ActualValue,
		Breached:    m.Breached,
		MeasuredAt:  m.MeasuredAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toRelationship(m CIRelationshipModel) domain.CIRelationship {
	return domain.CIRelationship{
		ID:               m.ID,
		SourceID:         m.SourceID,
		TargetID:         m.TargetID,
		RelationshipType: m.RelationshipType,
		CreatedAt:        m.CreatedAt,
	}
}
