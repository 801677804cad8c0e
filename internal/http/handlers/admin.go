package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/whatsapp-leadbot/internal/appointment"
	"github.com/wolfman30/whatsapp-leadbot/internal/conversation"
	httpmiddleware "github.com/wolfman30/whatsapp-leadbot/internal/http/middleware"
	"github.com/wolfman30/whatsapp-leadbot/internal/intent"
	"github.com/wolfman30/whatsapp-leadbot/internal/session"
	"github.com/wolfman30/whatsapp-leadbot/internal/support"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

// IntentCatalog is the cached intent catalog.
type IntentCatalog interface {
	Refresh(ctx context.Context) error
	ActiveIntents() []intent.Definition
}

// SessionAdmin reads and toggles per-user sessions.
type SessionAdmin interface {
	Get(ctx context.Context, phone string) (*session.Session, error)
	SetBotActive(ctx context.Context, phone string, active bool) (*session.Session, error)
}

// AppointmentAdmin lists booked visits and moves them through their lifecycle.
type AppointmentAdmin interface {
	List(ctx context.Context, status appointment.Status, limit int) ([]appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status appointment.Status) error
}

// AdvisorAdmin manages human advisor requests.
type AdvisorAdmin interface {
	ListPending(ctx context.Context, limit int) ([]support.AdvisorRequest, error)
	MarkContacted(ctx context.Context, id uuid.UUID, assignedTo string) error
	MarkResolved(ctx context.Context, id uuid.UUID, notes string) error
}

// ConversationHistory returns logged messages for a user.
type ConversationHistory interface {
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]conversation.LogRecord, error)
}

// AdminHandler serves the sales team's admin API.
type AdminHandler struct {
	catalog      IntentCatalog
	sessions     SessionAdmin
	appointments AppointmentAdmin
	advisors     AdvisorAdmin
	history      ConversationHistory
	logger       *logging.Logger
}

// AdminDeps groups the stores behind the admin API. Nil members disable
// their routes.
type AdminDeps struct {
	Catalog      IntentCatalog
	Sessions     SessionAdmin
	Appointments AppointmentAdmin
	Advisors     AdvisorAdmin
	History      ConversationHistory
}

func NewAdminHandler(deps AdminDeps, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{
		catalog:      deps.Catalog,
		sessions:     deps.Sessions,
		appointments: deps.Appointments,
		advisors:     deps.Advisors,
		history:      deps.History,
		logger:       logger,
	}
}

// Routes mounts the admin endpoints. Authentication is applied by the caller.
func (h *AdminHandler) Routes(r chi.Router) {
	if h.catalog != nil {
		r.Get("/intents", h.ListIntents)
		r.Post("/intents/refresh", h.RefreshIntents)
	}
	if h.sessions != nil {
		r.Get("/users/{phone}", h.GetUser)
		r.Put("/users/{phone}/bot", h.SetBotStatus)
		if h.history != nil {
			r.Get("/users/{phone}/conversations", h.GetConversation)
		}
	}
	if h.appointments != nil {
		r.Get("/appointments", h.ListAppointments)
		r.Put("/appointments/{id}/status", h.UpdateAppointmentStatus)
	}
	if h.advisors != nil {
		r.Get("/advisor-requests", h.ListAdvisorRequests)
		r.Post("/advisor-requests/{id}/contacted", h.MarkAdvisorContacted)
		r.Post("/advisor-requests/{id}/resolved", h.MarkAdvisorResolved)
	}
}

// ListIntents returns the cached active catalog.
// GET /admin/intents
func (h *AdminHandler) ListIntents(w http.ResponseWriter, r *http.Request) {
	intents := h.catalog.ActiveIntents()
	writeJSON(w, http.StatusOK, map[string]any{"intents": intents, "total": len(intents)})
}

// RefreshIntents forces a catalog reload.
// POST /admin/intents/refresh
func (h *AdminHandler) RefreshIntents(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Refresh(r.Context()); err != nil {
		h.logger.Error("intent catalog refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "intent catalog refresh failed")
		return
	}
	n := len(h.catalog.ActiveIntents())
	h.logger.Info("intent catalog refreshed", "intents", n, "operator", httpmiddleware.Operator(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"status": "refreshed", "intents": n})
}

// GetUser returns the session for a phone number.
// GET /admin/users/{phone}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type botStatusRequest struct {
	Active *bool `json:"active"`
}

// SetBotStatus turns automatic replies on or off for one user.
// PUT /admin/users/{phone}/bot
func (h *AdminHandler) SetBotStatus(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	var req botStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"active\": bool}")
		return
	}
	s, err := h.sessions.SetBotActive(r.Context(), phone, *req.Active)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("set bot status failed", "phone", phone, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update bot status")
		return
	}
	h.logger.Info("bot status changed", "phone", phone, "active", s.BotActive, "operator", httpmiddleware.Operator(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"phone": s.Phone, "bot_active": s.BotActive})
}

// GetConversation returns the latest logged messages for a user.
// GET /admin/users/{phone}/conversations
func (h *AdminHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	records, err := h.history.Recent(r.Context(), s.UserID, queryLimit(r))
	if err != nil {
		h.logger.Error("conversation history failed", "phone", s.Phone, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phone": s.Phone, "messages": records})
}

// ListAppointments returns booked visits, optionally filtered by ?status=.
// GET /admin/appointments
func (h *AdminHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	status := appointment.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	items, err := h.appointments.List(r.Context(), status, queryLimit(r))
	if err != nil {
		h.logger.Error("list appointments failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	if items == nil {
		items = []appointment.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items, "total": len(items)})
}

type appointmentStatusRequest struct {
	Status string `json:"status"`
}

// UpdateAppointmentStatus confirms, cancels or completes a visit.
// PUT /admin/appointments/{id}/status
func (h *AdminHandler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	var req appointmentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status := appointment.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	err := h.appointments.UpdateStatus(r.Context(), id, status)
	if errors.Is(err, appointment.ErrNotFound) {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}
	if err != nil {
		h.logger.Error("update appointment failed", "appointment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update appointment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

// ListAdvisorRequests returns pending human advisor requests.
// GET /admin/advisor-requests
func (h *AdminHandler) ListAdvisorRequests(w http.ResponseWriter, r *http.Request) {
	items, err := h.advisors.ListPending(r.Context(), queryLimit(r))
	if err != nil {
		h.logger.Error("list advisor requests failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list advisor requests")
		return
	}
	if items == nil {
		items = []support.AdvisorRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": items, "total": len(items)})
}

type advisorUpdateRequest struct {
	AssignedTo string `json:"assignedTo"`
	Notes      string `json:"notes"`
}

// MarkAdvisorContacted records that an advisor reached out to the lead.
// POST /admin/advisor-requests/{id}/contacted
func (h *AdminHandler) MarkAdvisorContacted(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	req, ok := decodeOptional(w, r)
	if !ok {
		return
	}
	assignedTo := strings.TrimSpace(req.AssignedTo)
	if assignedTo == "" {
		assignedTo = httpmiddleware.Operator(r.Context())
	}
	h.finishAdvisorUpdate(w, id, support.StatusContacted,
		h.advisors.MarkContacted(r.Context(), id, assignedTo))
}

// MarkAdvisorResolved closes an advisor request.
// POST /admin/advisor-requests/{id}/resolved
func (h *AdminHandler) MarkAdvisorResolved(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	req, ok := decodeOptional(w, r)
	if !ok {
		return
	}
	h.finishAdvisorUpdate(w, id, support.StatusResolved,
		h.advisors.MarkResolved(r.Context(), id, strings.TrimSpace(req.Notes)))
}

func (h *AdminHandler) finishAdvisorUpdate(w http.ResponseWriter, id uuid.UUID, status support.RequestStatus, err error) {
	if errors.Is(err, support.ErrNotFound) {
		writeError(w, http.StatusNotFound, "advisor request not found")
		return
	}
	if err != nil {
		h.logger.Error("advisor request update failed", "request_id", id, "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update advisor request")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

func (h *AdminHandler) loadSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	phone := chi.URLParam(r, "phone")
	s, err := h.sessions.Get(r.Context(), phone)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("load session failed", "phone", phone, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return nil, false
	}
	return s, true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request) (advisorUpdateRequest, bool) {
	var req advisorUpdateRequest
	if r.ContentLength == 0 {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
