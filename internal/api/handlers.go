/**
 * @description
 * This file contains the HTTP handlers for the entries-service's submission and
 * status endpoints. Handlers are responsible for parsing incoming requests,
 * calling the appropriate methods on the application service, and writing the
 * HTTP response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/babawina/entries-service/internal/app"
	"github.com/babawina/entries-service/internal/domain"
	"github.com/babawina/entries-service/internal/store"
)

// EntryHandlers holds the application service and rate limiter that handlers use.
type EntryHandlers struct {
	service              *app.Service
	rateLimiter          *app.RedisSubmissionRateLimiter
	submissionsPerMinute int
}

// NewEntryHandlers creates the handler set for the entries API.
func NewEntryHandlers(service *app.Service, limiter *app.RedisSubmissionRateLimiter, submissionsPerMinute int) *EntryHandlers {
	return &EntryHandlers{
		service:              service,
		rateLimiter:          limiter,
		submissionsPerMinute: submissionsPerMinute,
	}
}

// resolveUserID extracts and parses the authenticated user id from the request
// context. It writes the error response itself; callers should return
// immediately when ok is false.
func (h *EntryHandlers) resolveUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	rawUserID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// enforceSubmissionRateLimit counts this request against the per-user submission
// budget. Limiter errors fail open: Redis being down must not block paid entries.
func (h *EntryHandlers) enforceSubmissionRateLimit(w http.ResponseWriter, r *http.Request, userID uuid.UUID) bool {
	count, retryAfter, err := h.rateLimiter.ConsumeRateLimit(r.Context(), "submissions", userID.String(), h.submissionsPerMinute, time.Minute)
	if err != nil {
		log.Printf("level=warn component=api op=rate_limit user_id=%s msg=\"limiter unavailable; allowing request\" err=%v", userID, err)
		return true
	}
	if h.submissionsPerMinute > 0 && count > h.submissionsPerMinute {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Too many submissions. Please slow down and try again.")
		return false
	}
	return true
}

// SubmitSingleEntryHandler handles POST /entries/single. The submission is
// priced by the cumulative buy-2-get-1-free rule against the user's durable
// counter for the competition.
func (h *EntryHandlers) SubmitSingleEntryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUserID(w, r)
	if !ok {
		return
	}
	if !h.enforceSubmissionRateLimit(w, r, userID) {
		return
	}

	var req domain.SingleEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CompetitionID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "competition_id is required")
		return
	}

	result, err := h.service.SubmitSingleEntry(r.Context(), userID, req)
	if err != nil {
		h.writeSubmissionError(w, userID, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// SubmitBatchEntryHandler handles POST /entries/batch. Every 3rd entry within
// the batch is free; the batch succeeds or fails as a single unit.
func (h *EntryHandlers) SubmitBatchEntryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUserID(w, r)
	if !ok {
		return
	}
	if !h.enforceSubmissionRateLimit(w, r, userID) {
		return
	}

	var req domain.BatchEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CompetitionID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "competition_id is required")
		return
	}

	result, err := h.service.SubmitEntryBatch(r.Context(), userID, req)
	if err != nil {
		h.writeSubmissionError(w, userID, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// GetSubmissionStatusHandler handles GET /submission-status?competition_id=...
// It is read-only and never creates counter state.
func (h *EntryHandlers) GetSubmissionStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUserID(w, r)
	if !ok {
		return
	}

	competitionID, err := uuid.Parse(r.URL.Query().Get("competition_id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "A valid competition_id query parameter is required")
		return
	}

	status, err := h.service.GetSubmissionStatus(r.Context(), userID, competitionID)
	if err != nil {
		log.Printf("level=error component=api op=submission_status user_id=%s competition_id=%s err=%v", userID, competitionID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load submission status")
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// writeSubmissionError maps the service error taxonomy onto HTTP statuses. The
// order matters: more specific sentinels are checked before the generic 500.
func (h *EntryHandlers) writeSubmissionError(w http.ResponseWriter, userID uuid.UUID, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidCoordinates):
		h.writeError(w, http.StatusBadRequest, "Entry coordinates must be within the image bounds (0 to 1).")
	case errors.Is(err, app.ErrEmptyBatch):
		h.writeError(w, http.StatusBadRequest, "Batch must contain at least one entry.")
	case errors.Is(err, store.ErrCompetitionNotFound):
		h.writeError(w, http.StatusNotFound, "Competition not found.")
	case errors.Is(err, app.ErrCompetitionNotActive):
		h.writeError(w, http.StatusBadRequest, "This competition is not currently accepting entries.")
	case errors.Is(err, app.ErrNoPaymentMethod):
		h.writeError(w, http.StatusBadRequest, "No payment method on file. Please add a card before entering.")
	case errors.Is(err, app.ErrPaymentFailed):
		h.writeError(w, http.StatusPaymentRequired, "Payment was declined. No entries were submitted.")
	case errors.Is(err, app.ErrPersistenceFailure):
		log.Printf("level=error component=api op=submit user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Your entry could not be recorded. Our team has been notified; do not retry before checking your transactions.")
	default:
		log.Printf("level=error component=api op=submit user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

func (h *EntryHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *EntryHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}
