/**
 * @description
 * This file defines the core domain models for the entries-service. These structs
 * represent the main entities and data transfer objects (DTOs) used throughout the
 * service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests, database models, and external service
 *   payloads ensures clear separation of concerns and type safety.
 * - Amounts are stored as `int64` in the smallest currency unit (cents), which
 *   avoids floating-point inaccuracies with financial data. Competition entry
 *   prices arrive in rand and are converted exactly once at the service boundary.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Competition statuses. Only live competitions accept entries.
const (
	CompetitionStatusDraft  = "draft"
	CompetitionStatusLive   = "live"
	CompetitionStatusClosed = "closed"
	CompetitionStatusJudged = "judged"
)

// Transaction statuses.
const (
	TransactionStatusSucceeded  = "succeeded"
	TransactionStatusProcessing = "processing"
	TransactionStatusFailed     = "failed"
)

// Competition is the read-only competition projection this service depends on.
// The full competition record (images, prizes, winner data) is owned elsewhere.
type Competition struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Status         string    `json:"status"`
	EntryPriceRand float64   `json:"entry_price_rand"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
}

// IsAcceptingEntries reports whether the competition can accept a submission at
// the given instant: it must be live and inside its entry window.
func (c *Competition) IsAcceptingEntries(now time.Time) bool {
	if c.Status != CompetitionStatusLive {
		return false
	}
	return !now.Before(c.StartsAt) && !now.After(c.EndsAt)
}

// SubmissionCounter is the durable per-(user, competition) accounting record.
// One row exists per pair, created lazily on the first submission and never
// deleted; it is the single source of truth for the "buy 2 get 1 free" state
// across sessions. Invariant: TotalSubmissions == PaidSubmissions + FreeSubmissions.
type SubmissionCounter struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	CompetitionID      uuid.UUID `json:"competition_id"`
	PaidSubmissions    int       `json:"paid_submissions"`
	FreeSubmissions    int       `json:"free_submissions"`
	TotalSubmissions   int       `json:"total_submissions"`
	NextSubmissionFree bool      `json:"next_submission_free"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// EntryTransaction is the audit record for one payment event, including
// zero-amount free grants. Rows are immutable once in a terminal state
// (succeeded/failed); a processing row is a reconciliation marker.
type EntryTransaction struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	CompetitionID    uuid.UUID `json:"competition_id"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	WasFree          bool      `json:"was_free"`
	EntriesPurchased int       `json:"entries_purchased"`
	PricingStrategy  string    `json:"pricing_strategy"`
	StripeCustomerID *string   `json:"stripe_customer_id,omitempty"`
	PaymentIntentID  *string   `json:"payment_intent_id,omitempty"`
	ReceiptURL       *string   `json:"receipt_url,omitempty"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Entry is one user-submitted guess for a competition. Entries are append-only;
// GuessX and GuessY are normalized coordinates in the closed unit interval.
type Entry struct {
	ID              uuid.UUID `json:"id"`
	CompetitionID   uuid.UUID `json:"competition_id"`
	UserID          uuid.UUID `json:"user_id"`
	TransactionID   uuid.UUID `json:"transaction_id"`
	GuessX          float64   `json:"guess_x"`
	GuessY          float64   `json:"guess_y"`
	WasFreeEntry    bool      `json:"was_free_entry"`
	EntryPriceCents int64     `json:"entry_price_cents"`
	EntryNumber     int       `json:"entry_number"`
	CreatedAt       time.Time `json:"created_at"`
}

// PaymentMethod is the local mirror of a card saved with the payment processor.
// The processor owns card state; these rows exist for querying and for the
// at-most-one-default invariant.
type PaymentMethod struct {
	ID                    uuid.UUID `json:"id"`
	UserID                uuid.UUID `json:"user_id"`
	StripeCustomerID      string    `json:"stripe_customer_id"`
	StripePaymentMethodID string    `json:"stripe_payment_method_id"`
	CardBrand             string    `json:"card_brand"`
	CardLast4             string    `json:"card_last4"`
	CardExpMonth          int       `json:"card_exp_month"`
	CardExpYear           int       `json:"card_exp_year"`
	IsDefault             bool      `json:"is_default"`
	CreatedAt             time.Time `json:"created_at"`
}

// EntryCoordinates is one guess within a submission request.
type EntryCoordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SingleEntryRequest is the DTO for the single-entry submission endpoint.
type SingleEntryRequest struct {
	CompetitionID uuid.UUID        `json:"competition_id"`
	Entry         EntryCoordinates `json:"entry"`
}

// BatchEntryRequest is the DTO for the batch submission endpoint.
type BatchEntryRequest struct {
	CompetitionID uuid.UUID          `json:"competition_id"`
	Entries       []EntryCoordinates `json:"entries"`
}

// SingleEntryResult is returned after a successful single submission.
type SingleEntryResult struct {
	EntryID              uuid.UUID `json:"entry_id"`
	TransactionID        uuid.UUID `json:"transaction_id"`
	WasFree              bool      `json:"was_free"`
	AmountChargedCents   int64     `json:"amount_charged_cents"`
	PaymentIntentID      *string   `json:"payment_intent_id,omitempty"`
	NextSubmissionFree   bool      `json:"next_submission_free"`
	PaidSubmissions      int       `json:"paid_submissions"`
	FreeSubmissions      int       `json:"free_submissions"`
	TotalSubmissions     int       `json:"total_submissions"`
	SubmissionsUntilFree int       `json:"submissions_until_free"`
}

// BatchEntryResult is returned after a successful batch submission.
type BatchEntryResult struct {
	EntriesSubmitted  int         `json:"entries_submitted"`
	PaidEntries       int         `json:"paid_entries"`
	FreeEntries       int         `json:"free_entries"`
	TotalChargedCents int64       `json:"total_charged_cents"`
	TransactionID     uuid.UUID   `json:"transaction_id"`
	PaymentIntentID   *string     `json:"payment_intent_id,omitempty"`
	EntryIDs          []uuid.UUID `json:"entry_ids"`
}

// SubmissionStatus is the read-only projection behind the progress indicator.
type SubmissionStatus struct {
	NextSubmissionFree   bool `json:"next_submission_free"`
	PaidSubmissions      int  `json:"paid_submissions"`
	FreeSubmissions      int  `json:"free_submissions"`
	TotalSubmissions     int  `json:"total_submissions"`
	SubmissionsUntilFree int  `json:"submissions_until_free"`
	HasPaymentMethod     bool `json:"has_payment_method"`
}

// ChargeMetadata is the typed metadata attached to every payment processor
// charge so that processor-side records can be traced back to an entry batch.
type ChargeMetadata struct {
	UserID        uuid.UUID `json:"user_id"`
	CompetitionID uuid.UUID `json:"competition_id"`
	PaidEntries   int       `json:"paid_entries"`
	FreeEntries   int       `json:"free_entries"`
	TotalEntries  int       `json:"total_entries"`
}
