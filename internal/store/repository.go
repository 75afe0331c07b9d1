/**
 * @description
 * This file defines the `Repository` and `SubmissionTx` interfaces, which specify the
 * contract for all data access operations required by the entries-service. By defining
 * interfaces, we decouple the application's business logic from the specific database
 * implementation (PostgreSQL), making the code more modular and easier to test.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID generation and handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/babawina/entries-service/internal/domain"
	"github.com/google/uuid"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Competition methods (read-only projection)
	FindCompetitionByID(ctx context.Context, competitionID uuid.UUID) (*domain.Competition, error)

	// Payment method methods
	FindDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (*domain.PaymentMethod, error)
	FindPaymentMethodsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.PaymentMethod, error)
	FindStripeCustomerIDByUserID(ctx context.Context, userID uuid.UUID) (string, error)
	CountPaymentMethods(ctx context.Context, userID uuid.UUID) (int, error)
	CreatePaymentMethod(ctx context.Context, method *domain.PaymentMethod) error
	SetDefaultPaymentMethod(ctx context.Context, userID uuid.UUID, paymentMethodID uuid.UUID) error

	// Submission counter methods. FindSubmissionCounter never creates a row; lazy
	// creation happens only inside BeginSubmission, on a real submission.
	FindSubmissionCounter(ctx context.Context, userID, competitionID uuid.UUID) (*domain.SubmissionCounter, error)

	// Transaction audit methods. CreateAuditTransaction runs outside any submission
	// transaction so that failed-charge audit rows survive the rollback.
	CreateAuditTransaction(ctx context.Context, tx *domain.EntryTransaction) error

	// BeginSubmission opens the serialized read-decide-write sequence for one
	// (user, competition) key: it upserts the counter row and takes a row lock that
	// is held until Commit or Rollback. Concurrent submissions for the same key
	// queue behind the lock, which is what prevents the double-free-grant race.
	BeginSubmission(ctx context.Context, userID, competitionID uuid.UUID) (SubmissionTx, error)
}

// SubmissionTx is the handle for one in-flight submission. All writes performed
// through it are atomic: either the transaction record, the entries and the
// counter delta all commit, or none do.
type SubmissionTx interface {
	// Counter returns the locked counter snapshot read at BeginSubmission time.
	Counter() domain.SubmissionCounter

	// CountEntries returns the number of existing entries for this (user,
	// competition), used to derive the next 1-based entry number.
	CountEntries(ctx context.Context) (int, error)

	CreateTransaction(ctx context.Context, tx *domain.EntryTransaction) error
	CreateEntries(ctx context.Context, entries []*domain.Entry) error

	// ApplyCounterDelta increments the paid/free counters, recomputes the total and
	// overwrites the next-submission-free flag. It must only be called once the
	// charge (if any) has reached a terminal success state.
	ApplyCounterDelta(ctx context.Context, paidDelta, freeDelta int, nextSubmissionFree bool) (*domain.SubmissionCounter, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
