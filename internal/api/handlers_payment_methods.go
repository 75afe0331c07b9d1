/**
 * @description
 * HTTP handlers for payment method management. Card collection happens through
 * the payment processor's frontend SDK against a setup intent; this service only
 * ever sees processor identifiers, never raw card data.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/babawina/entries-service/internal/app"
	"github.com/babawina/entries-service/internal/store"
)

type savePaymentMethodRequest struct {
	StripePaymentMethodID string `json:"stripe_payment_method_id"`
}

// CreateSetupIntentHandler handles POST /payment-methods/setup-intent. It
// returns a client secret the frontend uses to collect and tokenize a card.
func (h *EntryHandlers) CreateSetupIntentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUserID(w, r)
	if !ok {
		return
	}

	clientSecret, err := h.service.CreateCardSetupIntent(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api op=setup_intent user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to start card setup")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"client_secret": clientSecret})
}

// SavePaymentMethodHandler handles POST /payment-methods. The frontend calls it
// after completing the setup intent, passing the processor payment method id.
func (h *EntryHandlers) SavePaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUserID(w, r)
	if !ok {
		return
	}

	var req savePaymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.StripePaymentMethodID = strings.TrimSpace(req.StripePaymentMethodID)
	if req.StripePaymentMethodID == "" {
		h.writeError(w, http.StatusBadRequest, "stripe_payment_method_id is required")
		return
	}

	method, err := h.service.SavePaymentMethod(r.Context(), userID, req.StripePaymentMethodID)
	if err != nil {
		if errors.Is(err, app.ErrPaymentMethodLimit) {
			h.writeError(w, http.StatusConflict, "Payment method limit reached. Remove a card before adding another.")
			return
		}
		log.Printf("level=error component=api op=save_payment_method user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to save payment method")
		return
	}

	h.writeJSON(w, http.StatusCreated, method)
}

// ListPaymentMethodsHandler handles GET /payment-methods, default card first.
func (h *EntryHandlers) ListPaymentMethodsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUserID(w, r)
	if !ok {
		return
	}

	methods, err := h.service.ListPaymentMethods(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api op=list_payment_methods user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list payment methods")
		return
	}

	h.writeJSON(w, http.StatusOK, methods)
}

type setDefaultPaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

// SetDefaultPaymentMethodHandler handles PUT /payment-methods/default.
func (h *EntryHandlers) SetDefaultPaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUserID(w, r)
	if !ok {
		return
	}

	var req setDefaultPaymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	methodID, err := uuid.Parse(req.PaymentMethodID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid payment method id")
		return
	}

	if err := h.service.SetDefaultPaymentMethod(r.Context(), userID, methodID); err != nil {
		if errors.Is(err, store.ErrPaymentMethodNotFound) {
			h.writeError(w, http.StatusNotFound, "Payment method not found")
			return
		}
		log.Printf("level=error component=api op=set_default_payment_method user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to update default payment method")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
