package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sproutfam/sprout/internal/auth"
	"github.com/sproutfam/sprout/internal/invite"
)

type InviteHandler struct {
	invites *invite.Service
	logger  *slog.Logger
}

func NewInviteHandler(invites *invite.Service, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{invites: invites, logger: logger}
}

type issueInviteRequest struct {
	TTLHours int `json:"ttl_hours"`
}

func (h *InviteHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueInviteRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	code, err := h.invites.Issue(r.Context(), auth.UserID(r.Context()), time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		h.logger.Error("issue invite", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue invite code")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"code":       code.Code,
		"expires_at": code.ExpiresAt,
	})
}

type codeRequest struct {
	Code string `json:"code"`
}

func (h *InviteHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	code, issuer, err := h.invites.Verify(req.Code)
	switch {
	case errors.Is(err, invite.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "invalid code format")
	case errors.Is(err, invite.ErrCodeNotFound):
		writeError(w, http.StatusNotFound, "code not found or expired")
	case err != nil:
		h.logger.Error("verify invite", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to verify code")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"code":        code.Code,
			"issuer_name": issuer.Name,
			"expires_at":  code.ExpiresAt,
		})
	}
}

func (h *InviteHandler) Link(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	familyID, err := h.invites.Link(r.Context(), req.Code, auth.UserID(r.Context()))
	switch {
	case errors.Is(err, invite.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "invalid code format")
	case errors.Is(err, invite.ErrCodeNotFound):
		writeError(w, http.StatusNotFound, "code not found or expired")
	case errors.Is(err, invite.ErrCodeConsumed):
		writeError(w, http.StatusConflict, "code already used")
	case err != nil:
		h.logger.Error("link invite", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to link")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"family_id": familyID})
	}
}
