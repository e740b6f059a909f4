package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"dealer-portal/internal/common/errors"
	"dealer-portal/internal/common/logger"
	"dealer-portal/internal/common/validation"
	"dealer-portal/internal/dealer"
	"dealer-portal/internal/models"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// DealerService is the dealer onboarding surface exposed over HTTP.
type DealerService interface {
	Approve(ctx context.Context, callerEmail, applicationID string) (*dealer.ApproveResult, error)
	Reject(ctx context.Context, callerEmail, applicationID, reason string) (*dealer.RejectResult, error)
	Invite(ctx context.Context, callerEmail string, req dealer.InviteRequest) (*dealer.InviteResult, error)
	Submit(ctx context.Context, req dealer.SubmitRequest) (*dealer.SubmitResult, error)
	ListApplications(ctx context.Context, callerEmail string, status models.ApplicationStatus, limit, offset int) (*dealer.ListResult, error)
	GetApplication(ctx context.Context, callerEmail, applicationID string) (*models.DealerApplication, error)
	HandleIdentityEvent(ctx context.Context, evt dealer.IdentityEvent) (*dealer.IdentityEventResult, error)
	Ping(ctx context.Context) error
}

// Handler holds the HTTP handlers for the dealer portal.
type Handler struct {
	svc           DealerService
	webhookSecret string
	log           logger.Logger
}

func NewHandler(svc DealerService, webhookSecret string, log logger.Logger) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret, log: log}
}

type approveRequest struct {
	ApplicationID string `json:"applicationId"`
}

type rejectRequest struct {
	ApplicationID string  `json:"applicationId"`
	Reason        *string `json:"reason"`
}

// decodeBody validates the request body against schema and decodes it into v.
// It writes a 400 and returns false when the body is unusable.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, schema *validation.Schema, v interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}

	if result := schema.ValidateBytes(body); !result.Valid {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body", result.Summary())
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.log.Warn("readiness check failed", map[string]interface{}{"error": err})
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) ApproveDealer(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !h.decodeBody(w, r, approveSchema, &req) {
		return
	}

	result, err := h.svc.Approve(r.Context(), CallerEmail(r.Context()), req.ApplicationID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) RejectDealer(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !h.decodeBody(w, r, rejectSchema, &req) {
		return
	}

	var reason string
	if req.Reason != nil {
		reason = *req.Reason
	}
	result, err := h.svc.Reject(r.Context(), CallerEmail(r.Context()), req.ApplicationID, reason)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) InviteDealer(w http.ResponseWriter, r *http.Request) {
	var req dealer.InviteRequest
	if !h.decodeBody(w, r, inviteSchema, &req) {
		return
	}

	result, err := h.svc.Invite(r.Context(), CallerEmail(r.Context()), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid limit", err.Error())
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "Invalid offset", err.Error())
		return
	}

	result, err := h.svc.ListApplications(r.Context(), CallerEmail(r.Context()),
		models.ApplicationStatus(q.Get("status")), limit, offset)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.GetApplication(r.Context(), CallerEmail(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req dealer.SubmitRequest
	if !h.decodeBody(w, r, submitSchema, &req) {
		return
	}

	result, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// IdentityWebhook receives identity provider events. Deliveries must carry
// the shared secret in X-Webhook-Secret.
func (h *Handler) IdentityWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Webhook-Secret")
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.webhookSecret)) != 1 {
		writeError(w, h.log, errors.NewUnauthenticatedError("invalid webhook secret"))
		return
	}

	var evt dealer.IdentityEvent
	if !h.decodeBody(w, r, identityEventSchema, &evt) {
		return
	}

	result, err := h.svc.HandleIdentityEvent(r.Context(), evt)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
