// Package handler provides HTTP handlers for the DiffScope webhook service.
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v73/github"

	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/core"
)

// maxPayloadBytes caps the webhook body read; GitHub payloads are limited to
// 25 MB.
const maxPayloadBytes = 25 << 20

// signatureHeader carries the HMAC-SHA256 signature of the raw body.
const signatureHeader = "X-Hub-Signature-256"

// WebhookHandler processes incoming webhooks from GitHub.
type WebhookHandler struct {
	cfg        *config.Config
	dispatcher core.JobDispatcher
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler with the given configuration and dispatcher.
func NewWebhookHandler(cfg *config.Config, dispatcher core.JobDispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Handle processes one GitHub webhook delivery. The signature is verified
// against the raw body before anything is parsed; forged requests are
// rejected with 403 and cause no collaborator calls. Irrelevant events and
// actions are a 200 "skipped" outcome, never an error. The review itself runs
// before the response is written, so a collaborator failure during scope
// resolution or publishing surfaces to the sender as a 500.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to read request body: %w", err))
		return
	}

	if !h.verifySignature(r.Header.Get(signatureHeader), body) {
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid signature"})
		return
	}

	eventType := github.WebHookType(r)
	if eventType != "pull_request" {
		h.writeSkipped(w, fmt.Sprintf("event %q not handled", eventType))
		return
	}

	payload, err := github.ParseWebHook(eventType, body)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, fmt.Errorf("could not parse webhook payload: %w", err))
		return
	}

	prEvent, ok := payload.(*github.PullRequestEvent)
	if !ok {
		h.writeSkipped(w, fmt.Sprintf("event %q not handled", eventType))
		return
	}

	event, err := core.EventFromPullRequest(prEvent)
	if err != nil {
		h.logger.Debug("ignoring pull request event", "reason", err.Error(), "repo", prEvent.GetRepo().GetFullName())
		h.writeSkipped(w, err.Error())
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), event); err != nil {
		h.logger.Error("review job failed", "error", err, "repo", event.RepoFullName)
		h.writeError(w, http.StatusInternalServerError, fmt.Errorf("review failed: %w", err))
		return
	}

	h.logger.Info("review job completed", "repo", event.RepoFullName, "pr", event.PRNumber, "action", event.Action)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// verifySignature checks the HMAC-SHA256 signature header against the raw
// body. It fails closed: a missing header, missing secret, or mismatch all
// reject the request.
func (h *WebhookHandler) verifySignature(signature string, body []byte) bool {
	if h.cfg.GitHubWebhookSecret == "" || signature == "" {
		h.logger.Warn("rejecting webhook delivery without signature material")
		return false
	}
	if err := github.ValidateSignature(signature, body, []byte(h.cfg.GitHubWebhookSecret)); err != nil {
		h.logger.Warn("invalid webhook signature", "error", err)
		return false
	}
	return true
}

func (h *WebhookHandler) writeSkipped(w http.ResponseWriter, reason string) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "skipped", "reason": reason})
}

func (h *WebhookHandler) writeError(w http.ResponseWriter, status int, err error) {
	h.logger.Error("webhook delivery failed", "status", status, "error", err)
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *WebhookHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
