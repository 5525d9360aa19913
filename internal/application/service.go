package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/atvirokodosprendimai/cmdb/internal/topology"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

const recentLimit = 10

type CMDBService struct {
	repo domain.CMDBRepository
	log  zerolog.Logger
}

func NewCMDBService(repo domain.CMDBRepository, log zerolog.Logger) *CMDBService {
	return &CMDBService{repo: repo, log: log}
}

func (s *CMDBService) ListCIs(ctx context.Context) ([]domain.ConfigurationItem, error) {
	return s.repo.ListCIs(ctx)
}

func (s *CMDBService) GetCI(ctx context.Context, id string) (domain.ConfigurationItem, error) {
	if err := requireID(id, "ci id"); err != nil {
		return domain.ConfigurationItem{}, err
	}
	return s.repo.GetCI(ctx, id)
}

func (s *CMDBService) CreateCI(ctx context.Context, ci domain.ConfigurationItem) (domain.ConfigurationItem, error) {
	if err := checkCI(ci); err != nil {
		return domain.ConfigurationItem{}, err
	}

	created, err := s.repo.CreateCI(ctx, ci)
	if err != nil {
		return domain.ConfigurationItem{}, err
	}
	s.audit(ctx, "ci.create", "ci", created.ID, created.Name)
	return created, nil
}

func (s *CMDBService) UpdateCI(ctx context.Context, id string, patch domain.CIPatch) (domain.ConfigurationItem, error) {
	if err := requireID(id, "ci id"); err != nil {
		return domain.ConfigurationItem{}, err
	}
	if err := checkCIPatch(patch); err != nil {
		return domain.ConfigurationItem{}, err
	}

	updated, err := s.repo.UpdateCI(ctx, id, patch)
	if err != nil {
		return domain.ConfigurationItem{}, err
	}
	s.audit(ctx, "ci.update", "ci", updated.ID, updated.Name)
	return updated, nil
}

// DeleteCI removes the item. Its relationships go with it and tickets or
// metrics pointing at it are detached.
func (s *CMDBService) DeleteCI(ctx context.Context, id string) error {
	if err := requireID(id, "ci id"); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteCI(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.audit(ctx, "ci.delete", "ci", id, "")
	return nil
}

func (s *CMDBService) ListRelationships(ctx context.Context, ciID string) ([]domain.CIRelationship, error) {
	if err := requireID(ciID, "ci id"); err != nil {
		return nil, err
	}
	return s.repo.ListRelationships(ctx, ciID)
}

func (s *CMDBService) CreateRelationship(ctx context.Context, rel domain.CIRelationship) (domain.CIRelationship, error) {
	if strings.TrimSpace(rel.SourceID) == "" || strings.TrimSpace(rel.TargetID) == "" || strings.TrimSpace(rel.RelationshipType) == "" {
		return domain.CIRelationship{}, fmt.Errorf("%w: sourceId, targetId and relationshipType are required", domain.ErrInvalidInput)
	}
	if rel.SourceID == rel.TargetID {
		return domain.CIRelationship{}, fmt.Errorf("%w: a configuration item cannot relate to itself", domain.ErrInvalidInput)
	}
	if _, err := s.repo.GetCI(ctx, rel.SourceID); err != nil {
		return domain.CIRelationship{}, err
	}
	if _, err := s.repo.GetCI(ctx, rel.TargetID); err != nil {
		return domain.CIRelationship{}, err
	}
	existing, err := s.repo.ListRelationships(ctx, rel.SourceID)
	if err != nil {
		return domain.CIRelationship{}, err
	}
	for _, e := range existing {
		if e.TargetID == rel.TargetID && e.RelationshipType == rel.RelationshipType {
			return domain.CIRelationship{}, fmt.Errorf("%w: relationship already exists", domain.ErrInvalidInput)
		}
	}

	created, err := s.repo.CreateRelationship(ctx, rel)
	if err != nil {
		return domain.CIRelationship{}, err
	}
	s.audit(ctx, "relationship.create", "relationship", created.ID, created.SourceID+" "+created.RelationshipType+" "+created.TargetID)
	return created, nil
}

func (s *CMDBService) DeleteRelationship(ctx context.Context, id string) error {
	if err := requireID(id, "relationship id"); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteRelationship(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.audit(ctx, "relationship.delete", "relationship", id, "")
	return nil
}

func (s *CMDBService) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, error) {
	return s.repo.ListTickets(ctx, filter)
}

// CITickets lists the tickets raised against one configuration item.
func (s *CMDBService) CITickets(ctx context.Context, ciID string) ([]domain.Ticket, error) {
	if err := requireID(ciID, "ci id"); err != nil {
		return nil, err
	}
	return s.repo.ListTickets(ctx, domain.TicketFilter{CIID: &ciID})
}

func (s *CMDBService) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	if err := requireID(id, "ticket id"); err != nil {
		return domain.Ticket{}, err
	}
	return s.repo.GetTicket(ctx, id)
}

func (s *CMDBService) CreateTicket(ctx context.Context, t domain.Ticket) (domain.Ticket, error) {
	if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.Priority) == "" {
		return domain.Ticket{}, fmt.Errorf("%w: title and priority are required", domain.ErrInvalidInput)
	}
	if err := s.checkCIRef(ctx, t.CIID); err != nil {
		return domain.Ticket{}, err
	}

	created, err := s.repo.CreateTicket(ctx, t)
	if err != nil {
		return domain.Ticket{}, err
	}
	s.audit(ctx, "ticket.create", "ticket", created.ID, created.Title)
	return created, nil
}

func (s *CMDBService) UpdateTicket(ctx context.Context, id string, patch domain.TicketPatch) (domain.Ticket, error) {
	if err := requireID(id, "ticket id"); err != nil {
		return domain.Ticket{}, err
	}
	if err := s.checkCIRef(ctx, patch.CIID); err != nil {
		return domain.Ticket{}, err
	}

	updated, err := s.repo.UpdateTicket(ctx, id, patch)
	if err != nil {
		return domain.Ticket{}, err
	}
	s.audit(ctx, "ticket.update", "ticket", updated.ID, updated.Status)
	return updated, nil
}

func (s *CMDBService) ListSLAMetrics(ctx context.Context) ([]domain.SLAMetric, error) {
	return s.repo.ListSLAMetrics(ctx)
}

func (s *CMDBService) CreateSLAMetric(ctx context.Context, m domain.SLAMetric) (domain.SLAMetric, error) {
	if strings.TrimSpace(m.MetricName) == "" {
		return domain.SLAMetric{}, fmt.Errorf("%w: metricName is required", domain.ErrInvalidInput)
	}
	if err := s.checkCIRef(ctx, m.CIID); err != nil {
		return domain.SLAMetric{}, err
	}

	created, err := s.repo.CreateSLAMetric(ctx, m)
	if err != nil {
		return domain.SLAMetric{}, err
	}
	s.audit(ctx, "sla.create", "sla_metric", created.ID, created.MetricName)
	return created, nil
}

// Dashboard reads every CI, ticket and SLA metric concurrently and folds
// them into counters. A failure of any read fails the whole summary.
func (s *CMDBService) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	var (
		cis     []domain.ConfigurationItem
		tickets []domain.Ticket
		metrics []domain.SLAMetric
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cis, err = s.repo.ListCIs(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		tickets, err = s.repo.ListTickets(gctx, domain.TicketFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		metrics, err = s.repo.ListSLAMetrics(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardSummary{}, err
	}

	return Summarize(cis, tickets, metrics), nil
}

// Summarize builds the dashboard counters from already loaded rows.
func Summarize(cis []domain.ConfigurationItem, tickets []domain.Ticket, metrics []domain.SLAMetric) domain.DashboardSummary {
	summary := domain.DashboardSummary{
		TotalCIs:          len(cis),
		TotalTickets:      len(tickets),
		TicketsByStatus:   make(map[string]int),
		TicketsByPriority: make(map[string]int),
	}

	for _, t := range tickets {
		if t.Status != domain.TicketStatusResolved && t.Status != domain.TicketStatusClosed {
			summary.OpenTickets++
		}
		summary.TicketsByStatus[t.Status]++
		summary.TicketsByPriority[t.Priority]++
	}
	for _, m := range metrics {
		if m.Breached {
			summary.BreachedSLAs++
		}
	}

	recentTickets := append([]domain.Ticket(nil), tickets...)
	sort.SliceStable(recentTickets, func(i, j int) bool {
		return recentTickets[i].UpdatedAt.After(recentTickets[j].UpdatedAt)
	})
	summary.RecentTickets = recentTickets[:min(recentLimit, len(recentTickets))]

	recentCIs := append([]domain.ConfigurationItem(nil), cis...)
	sort.SliceStable(recentCIs, func(i, j int) bool {
		return recentCIs[i].UpdatedAt.After(recentCIs[j].UpdatedAt)
	})
	summary.RecentCIs = recentCIs[:min(recentLimit, len(recentCIs))]

	return summary
}

// Topology lays out the item and the targets of its outgoing relationships.
func (s *CMDBService) Topology(ctx context.Context, ciID string) (topology.Layout, error) {
	center, err := s.GetCI(ctx, ciID)
	if err != nil {
		return topology.Layout{}, err
	}

	rels, err := s.repo.ListRelationships(ctx, ciID)
	if err != nil {
		return topology.Layout{}, err
	}

	targetIDs := make([]string, 0, len(rels))
	for _, rel := range rels {
		targetIDs = append(targetIDs, rel.TargetID)
	}
	related, err := s.repo.GetCIsByIDs(ctx, targetIDs)
	if err != nil {
		return topology.Layout{}, err
	}

	return topology.Compute(center, related, rels), nil
}

// BootstrapUser creates the first user when the store has none.
func (s *CMDBService) BootstrapUser(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return errors.New("bootstrap username and password are required")
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	u, err := s.CreateUser(ctx, username, password)
	if err != nil {
		return err
	}
	s.log.Info().Str("username", u.Username).Msg("bootstrap user created")
	return nil
}

func (s *CMDBService) CreateUser(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return domain.User{}, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.repo.CreateUser(ctx, domain.User{Username: username, PasswordHash: hash})
	if err != nil {
		return domain.User{}, err
	}
	s.audit(ctx, "user.create", "user", u.ID, u.Username)
	return u, nil
}

// VerifyPassword reports whether password matches the stored hash of the
// named user.
func (s *CMDBService) VerifyPassword(ctx context.Context, username, password string) (domain.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrInvalidInput)
	}
	return u, nil
}

func (s *CMDBService) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *CMDBService) checkCIRef(ctx context.Context, ciID *string) error {
	if ciID == nil {
		return nil
	}
	_, err := s.repo.GetCI(ctx, *ciID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: configuration item %q does not exist", domain.ErrInvalidInput, *ciID)
	}
	return err
}

func (s *CMDBService) audit(ctx context.Context, action, targetType, targetID, metadata string) {
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("action", action).Str("target_id", targetID).Msg("audit write failed")
	}
}

func requireID(id, name string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, name)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
