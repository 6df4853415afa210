package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"crmflow/internal/api"
	"crmflow/internal/logging"
	"crmflow/internal/services"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	svc    *api.Service
	status statusFunc
	logger *slog.Logger
}

// newHandler routes the HTTP API onto svc. Authentication, CORS and request
// context are layered on by the caller.
func newHandler(svc *api.Service, status statusFunc, logger *slog.Logger) http.Handler {
	h := &handlers{svc: svc, status: status, logger: logger}
	if h.logger == nil {
		h.logger = logging.NewNop()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", h.handleStatus)
	mux.HandleFunc("POST /api/entities", h.handleCreateEntity)
	mux.HandleFunc("GET /api/entities/{id}", h.handleGetEntity)
	mux.HandleFunc("POST /api/entities/{id}/transition", h.handleTransition)
	mux.HandleFunc("GET /api/entities/{id}/history", h.handleHistory)
	mux.HandleFunc("GET /api/timeline/{subjectId}", h.handleTimeline)
	mux.HandleFunc("POST /api/timeline", h.handleAppendTimeline)
	mux.HandleFunc("POST /api/notifications", h.handleSendNotification)
	mux.HandleFunc("POST /api/notifications/{id}/read", h.handleMarkRead)
	mux.HandleFunc("GET /api/users/{id}/notifications", h.handleListNotifications)
	mux.HandleFunc("POST /api/users/{id}/notifications/read-all", h.handleMarkAllRead)
	mux.HandleFunc("GET /api/users/{id}/preferences", h.handleGetPreferences)
	mux.HandleFunc("PUT /api/users/{id}/preferences", h.handleSetPreferences)
	mux.HandleFunc("PUT /api/users/{id}", h.handleUpsertUser)
	mux.HandleFunc("POST /api/events", h.handleAddEvent)
	mux.HandleFunc("PUT /api/events/{id}/reminders/{userId}", h.handleSetReminder)
	mux.HandleFunc("POST /api/reminders/poll", h.handlePoll)
	return mux
}

func actor(r *http.Request) string {
	a, _ := services.ActorFromContext(r.Context())
	return a
}

func (h *handlers) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if h.status == nil {
		writeJSON(w, http.StatusOK, api.DaemonStatus{})
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

func (h *handlers) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req api.CreateEntityRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.CreateEntity(r.Context(), actor(r), req)
	h.respond(w, r, http.StatusCreated, out, err)
}

func (h *handlers) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Entity(r.Context(), r.PathValue("id"))
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *handlers) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req api.TransitionRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := services.WithEntityID(r.Context(), r.PathValue("id"))
	out, err := h.svc.Transition(ctx, actor(r), r.PathValue("id"), req.Stage)
	h.respond(w, r.WithContext(ctx), http.StatusOK, out, err)
}

func (h *handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.History(r.Context(), r.PathValue("id"))
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *handlers) handleTimeline(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intQuery(w, r, "limit")
	if !ok {
		return
	}
	out, err := h.svc.Timeline(r.Context(), r.PathValue("subjectId"), r.URL.Query().Get("before"), limit)
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *handlers) handleAppendTimeline(w http.ResponseWriter, r *http.Request) {
	var req api.TimelineAppendRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.AppendTimeline(r.Context(), actor(r), req)
	h.respond(w, r, http.StatusCreated, out, err)
}

func (h *handlers) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	var req api.NotificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := services.WithUserID(r.Context(), req.UserID)
	out, err := h.svc.SendNotification(ctx, actor(r), req)
	h.respond(w, r.WithContext(ctx), http.StatusCreated, out, err)
}

func (h *handlers) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.MarkRead(r.Context(), r.PathValue("id"))
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *handlers) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.intQuery(w, r, "limit")
	if !ok {
		return
	}
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	out, err := h.svc.Notifications(r.Context(), r.PathValue("id"), unread, limit)
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *handlers) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.MarkAllRead(r.Context(), r.PathValue("id"))
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *handlers) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Preferences(r.Context(), r.PathValue("id"))
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *handlers) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	var req api.PreferenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.SetPreferences(r.Context(), r.PathValue("id"), req)
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *handlers) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var req api.UserRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ID = r.PathValue("id")
	out, err := h.svc.UpsertUser(r.Context(), req)
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *handlers) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var req api.CalendarEventRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.AddCalendarEvent(r.Context(), req)
	h.respond(w, r, http.StatusCreated, out, err)
}

func (h *handlers) handleSetReminder(w http.ResponseWriter, r *http.Request) {
	var req api.ReminderRequest
	if !h.decode(w, r, &req) {
		return
	}
	out, err := h.svc.SetReminder(r.Context(), r.PathValue("id"), r.PathValue("userId"), req.ReminderType)
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *handlers) handlePoll(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.PollReminders(r.Context())
	h.respond(w, r, http.StatusOK, out, err)
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body: "+err.Error(), "invalid_argument"))
		return false
	}
	return true
}

func (h *handlers) intQuery(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody(key+" must be a non-negative integer", "invalid_argument"))
		return 0, false
	}
	return v, true
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, status int, payload any, err error) {
	if err == nil {
		writeJSON(w, status, payload)
		return
	}
	code := services.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), h.logger), "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorHint, "see the wrapped cause for details"),
		)
	}
	writeJSON(w, code, errorBody(err.Error(), services.Kind(err)))
}

func errorBody(message, kind string) api.ErrorResponse {
	return api.ErrorResponse{Error: message, Kind: kind}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
