package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/cmdb/internal/application"
	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type Handler struct {
	service *application.CMDBService
}

type envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Message string       `json:"message,omitempty"`
	Details []fieldError `json:"details,omitempty"`
}

func NewRouter(service *application.CMDBService, log zerolog.Logger) http.Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", h.handleHealth)

		api.Get("/cis", h.handleListCIs)
		api.Post("/cis", h.handleCreateCI)
		api.Get("/cis/{id}", h.handleGetCI)
		api.Put("/cis/{id}", h.handleUpdateCI)
		api.Delete("/cis/{id}", h.handleDeleteCI)
		api.Get("/cis/{id}/relationships", h.handleCIRelationships)
		api.Get("/cis/{id}/tickets", h.handleCITickets)
		api.Get("/cis/{id}/topology", h.handleCITopology)

		api.Post("/relationships", h.handleCreateRelationship)
		api.Delete("/relationships/{id}", h.handleDeleteRelationship)

		api.Get("/tickets", h.handleListTickets)
		api.Post("/tickets", h.handleCreateTicket)
		api.Get("/tickets/{id}", h.handleGetTicket)
		api.Put("/tickets/{id}", h.handleUpdateTicket)

		api.Get("/sla-metrics", h.handleListSLAMetrics)
		api.Post("/sla-metrics", h.handleCreateSLAMetric)

		api.Get("/dashboard", h.handleDashboard)
		api.Get("/audit", h.handleListAuditLogs)
	})

	r.Get("/topology/{id}", h.handleTopologyPage)
	r.Post("/topology/{id}/view", h.handleTopologyView)

	return r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("request_id", middleware.GetReqID(r.Context())).
		Msg("request")
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *Handler) handleListCIs(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListCIs(r.Context())
	if err != nil {
		h.fail(w, r, err, "", "Failed to fetch configuration items")
		return
	}
	writeData(w, http.StatusOK, items)
}

func (h *Handler) handleGetCI(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetCI(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "Configuration item not found", "Failed to fetch configuration item")
		return
	}
	writeData(w, http.StatusOK, item)
}

func (h *Handler) handleCreateCI(w http.ResponseWriter, r *http.Request) {
	var req ciCreateRequest
	if details := decodeAndValidate(r, &req); details != nil {
		writeValidation(w, details)
		return
	}
	item, err := h.service.CreateCI(r.Context(), req.toDomain())
	if err != nil {
		h.fail(w, r, err, "", "Failed to create configuration item")
		return
	}
	writeData(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdateCI(w http.ResponseWriter, r *http.Request) {
	var req ciUpdateRequest
	if details := decodeAndValidate(r, &req); details != nil {
		writeValidation(w, details)
		return
	}
	item, err := h.service.UpdateCI(r.Context(), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		h.fail(w, r, err, "Configuration item not found", "Failed to update configuration item")
		return
	}
	writeData(w, http.StatusOK, item)
}

func (h *Handler) handleDeleteCI(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCI(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, "Configuration item not found", "Failed to delete configuration item")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Configuration item deleted"})
}

func (h *Handler) handleCIRelationships(w http.ResponseWriter, r *http.Request) {
	rels, err := h.service.ListRelationships(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "", "Failed to fetch CI relationships")
		return
	}
	writeData(w, http.StatusOK, rels)
}

func (h *Handler) handleCITickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.CITickets(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "", "Failed to fetch tickets for CI")
		return
	}
	writeData(w, http.StatusOK, tickets)
}

func (h *Handler) handleCITopology(w http.ResponseWriter, r *http.Request) {
	layout, err := h.service.Topology(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "Configuration item not found", "Failed to build topology")
		return
	}
	writeData(w, http.StatusOK, layout)
}

func (h *Handler) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req relationshipCreateRequest
	if details := decodeAndValidate(r, &req); details != nil {
		writeValidation(w, details)
		return
	}
	rel, err := h.service.CreateRelationship(r.Context(), req.toDomain())
	if err != nil {
		h.fail(w, r, err, "Configuration item not found", "Failed to create relationship")
		return
	}
	writeData(w, http.StatusCreated, rel)
}

func (h *Handler) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteRelationship(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, "Relationship not found", "Failed to delete relationship")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Relationship deleted"})
}

func (h *Handler) handleListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.TicketFilter{
		Status:   queryParam(q.Get("status")),
		Priority: queryParam(q.Get("priority")),
		CIID:     queryParam(q.Get("ciId")),
	}
	tickets, err := h.service.ListTickets(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err, "", "Failed to fetch tickets")
		return
	}
	writeData(w, http.StatusOK, tickets)
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.service.GetTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "Ticket not found", "Failed to fetch ticket")
		return
	}
	writeData(w, http.StatusOK, ticket)
}

func (h *Handler) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req ticketCreateRequest
	if details := decodeAndValidate(r, &req); details != nil {
		writeValidation(w, details)
		return
	}
	ticket, err := h.service.CreateTicket(r.Context(), req.toDomain())
	if err != nil {
		h.fail(w, r, err, "", "Failed to create ticket")
		return
	}
	writeData(w, http.StatusCreated, ticket)
}

func (h *Handler) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	var req ticketUpdateRequest
	if details := decodeAndValidate(r, &req); details != nil {
		writeValidation(w, details)
		return
	}
	ticket, err := h.service.UpdateTicket(r.Context(), chi.URLParam(r, "id"), req.toPatch())
	if err != nil {
		h.fail(w, r, err, "Ticket not found", "Failed to update ticket")
		return
	}
	writeData(w, http.StatusOK, ticket)
}

func (h *Handler) handleListSLAMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.ListSLAMetrics(r.Context())
	if err != nil {
		h.fail(w, r, err, "", "Failed to fetch SLA metrics")
		return
	}
	writeData(w, http.StatusOK, metrics)
}

func (h *Handler) handleCreateSLAMetric(w http.ResponseWriter, r *http.Request) {
	var req slaMetricCreateRequest
	if details := decodeAndValidate(r, &req); details != nil {
		writeValidation(w, details)
		return
	}
	metric, err := h.service.CreateSLAMetric(r.Context(), req.toDomain())
	if err != nil {
		h.fail(w, r, err, "", "Failed to create SLA metric")
		return
	}
	writeData(w, http.StatusCreated, metric)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, err, "", "Failed to fetch dashboard data")
		return
	}
	writeData(w, http.StatusOK, summary)
}

func (h *Handler) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.service.ListAuditLogs(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err, "", "Failed to fetch audit logs")
		return
	}
	writeData(w, http.StatusOK, logs)
}

// fail maps service errors onto the response envelope. Only unexpected
// errors are logged; their text never reaches the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, notFound, op string) {
	switch {
	case errors.Is(err, domain.ErrNotFound) && notFound != "":
		writeJSON(w, http.StatusNotFound, envelope{Error: notFound})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, envelope{Error: err.Error()})
	default:
		hlog.FromRequest(r).Error().Err(err).Str("op", op).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, envelope{Error: op})
	}
}

func queryParam(raw string) *string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	return &v
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeValidation(w http.ResponseWriter, details []fieldError) {
	writeJSON(w, http.StatusBadRequest, envelope{Error: "Validation failed", Details: details})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
