/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to competitions, payment methods, transactions, entries, and submission
 * counters.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/babawina/entries-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrCompetitionNotFound   = errors.New("competition not found")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrCounterNotFound       = errors.New("submission counter not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindCompetitionByID retrieves the competition projection used for entry-window
// and pricing checks. The entries-service only reads competitions.
func (r *PostgresRepository) FindCompetitionByID(ctx context.Context, competitionID uuid.UUID) (*domain.Competition, error) {
	var comp domain.Competition
	query := `
		SELECT id, title, status, entry_price_rand, starts_at, ends_at
		FROM competitions
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, competitionID).Scan(
		&comp.ID,
		&comp.Title,
		&comp.Status,
		&comp.EntryPriceRand,
		&comp.StartsAt,
		&comp.EndsAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCompetitionNotFound
		}
		return nil, err
	}
	return &comp, nil
}

const paymentMethodColumns = `
	id, user_id, stripe_customer_id, stripe_payment_method_id,
	card_brand, card_last4, card_exp_month, card_exp_year, is_default, created_at
`

func scanPaymentMethod(row pgx.Row) (*domain.PaymentMethod, error) {
	var m domain.PaymentMethod
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.StripeCustomerID,
		&m.StripePaymentMethodID,
		&m.CardBrand,
		&m.CardLast4,
		&m.CardExpMonth,
		&m.CardExpYear,
		&m.IsDefault,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindDefaultPaymentMethod returns the user's default saved card, if any.
func (r *PostgresRepository) FindDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (*domain.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM user_payment_methods WHERE user_id = $1 AND is_default = TRUE`
	method, err := scanPaymentMethod(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, err
	}
	return method, nil
}

// FindPaymentMethodsByUserID lists the user's saved cards, default first.
func (r *PostgresRepository) FindPaymentMethodsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM user_payment_methods WHERE user_id = $1 ORDER BY is_default DESC, created_at ASC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []domain.PaymentMethod
	for rows.Next() {
		method, err := scanPaymentMethod(rows)
		if err != nil {
			return nil, err
		}
		methods = append(methods, *method)
	}
	return methods, rows.Err()
}

// FindStripeCustomerIDByUserID returns the processor customer id already recorded
// for a user, from any of their saved cards. Empty string means no customer yet.
func (r *PostgresRepository) FindStripeCustomerIDByUserID(ctx context.Context, userID uuid.UUID) (string, error) {
	var customerID string
	query := `SELECT stripe_customer_id FROM user_payment_methods WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&customerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return customerID, nil
}

// CountPaymentMethods returns how many cards the user has saved.
func (r *PostgresRepository) CountPaymentMethods(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_payment_methods WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// CreatePaymentMethod inserts a mirrored card row. The first card a user saves
// becomes their default automatically.
func (r *PostgresRepository) CreatePaymentMethod(ctx context.Context, method *domain.PaymentMethod) error {
	query := `
		INSERT INTO user_payment_methods (
			id, user_id, stripe_customer_id, stripe_payment_method_id,
			card_brand, card_last4, card_exp_month, card_exp_year, is_default, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		method.ID,
		method.UserID,
		method.StripeCustomerID,
		method.StripePaymentMethodID,
		method.CardBrand,
		method.CardLast4,
		method.CardExpMonth,
		method.CardExpYear,
		method.IsDefault,
	).Scan(&method.CreatedAt)
}

// SetDefaultPaymentMethod clears the user's current default and sets the new one
// inside a single transaction, preserving the at-most-one-default invariant.
func (r *PostgresRepository) SetDefaultPaymentMethod(ctx context.Context, userID uuid.UUID, paymentMethodID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE user_payment_methods SET is_default = FALSE WHERE user_id = $1 AND is_default = TRUE`, userID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `UPDATE user_payment_methods SET is_default = TRUE WHERE id = $1 AND user_id = $2`, paymentMethodID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentMethodNotFound
	}

	return tx.Commit(ctx)
}

// FindSubmissionCounter reads the counter row for a (user, competition) pair.
// It never creates one; the status endpoint must stay side-effect free.
func (r *PostgresRepository) FindSubmissionCounter(ctx context.Context, userID, competitionID uuid.UUID) (*domain.SubmissionCounter, error) {
	var counter domain.SubmissionCounter
	query := `
		SELECT id, user_id, competition_id, paid_submissions, free_submissions,
		       total_submissions, next_submission_free, created_at, updated_at
		FROM user_submission_counters
		WHERE user_id = $1 AND competition_id = $2
	`
	err := r.db.QueryRow(ctx, query, userID, competitionID).Scan(
		&counter.ID,
		&counter.UserID,
		&counter.CompetitionID,
		&counter.PaidSubmissions,
		&counter.FreeSubmissions,
		&counter.TotalSubmissions,
		&counter.NextSubmissionFree,
		&counter.CreatedAt,
		&counter.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCounterNotFound
		}
		return nil, err
	}
	return &counter, nil
}

// CreateAuditTransaction inserts a transaction audit row on the pool connection,
// outside any submission transaction. Failed-charge audit rows must survive the
// submission rollback, so they cannot go through a SubmissionTx.
func (r *PostgresRepository) CreateAuditTransaction(ctx context.Context, tx *domain.EntryTransaction) error {
	return insertTransaction(ctx, r.db, tx)
}

// querier is the subset of pgx query methods shared by pools and transactions.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTransaction(ctx context.Context, q querier, tx *domain.EntryTransaction) error {
	query := `
		INSERT INTO transactions (
			id, user_id, competition_id, amount_cents, currency, status, was_free,
			entries_purchased, pricing_strategy, stripe_customer_id,
			stripe_payment_intent_id, receipt_url, error_message, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		RETURNING created_at
	`
	return q.QueryRow(ctx, query,
		tx.ID,
		tx.UserID,
		tx.CompetitionID,
		tx.AmountCents,
		tx.Currency,
		tx.Status,
		tx.WasFree,
		tx.EntriesPurchased,
		tx.PricingStrategy,
		tx.StripeCustomerID,
		tx.PaymentIntentID,
		tx.ReceiptURL,
		tx.ErrorMessage,
	).Scan(&tx.CreatedAt)
}
