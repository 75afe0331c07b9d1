/**
 * @description
 * This file implements the serialized submission sequence for the submission
 * counter. A submission must read the counter, decide free vs. paid, charge the
 * payment processor, persist its records and update the counter as one logical
 * unit; two concurrent submissions for the same (user, competition) key must not
 * both observe a stale next-submission-free flag. The sequence is serialized by
 * taking a row-level lock on the counter row for the lifetime of the submission.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/jackc/pgx/v5: Transactions and row locking.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"fmt"

	"github.com/babawina/entries-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// postgresSubmissionTx holds the open transaction and the locked counter snapshot
// for one in-flight submission.
type postgresSubmissionTx struct {
	tx      pgx.Tx
	counter domain.SubmissionCounter
}

// BeginSubmission opens a database transaction, lazily creates the counter row
// for the (user, competition) pair, and locks it with SELECT ... FOR UPDATE.
// The unique (user_id, competition_id) constraint makes the lazy create safe
// under a concurrent first-time race: the loser's insert is a no-op and both
// requests queue on the same row lock.
func (r *PostgresRepository) BeginSubmission(ctx context.Context, userID, competitionID uuid.UUID) (SubmissionTx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin submission transaction: %w", err)
	}

	upsert := `
		INSERT INTO user_submission_counters (
			id, user_id, competition_id, paid_submissions, free_submissions,
			total_submissions, next_submission_free, created_at, updated_at
		)
		VALUES ($1, $2, $3, 0, 0, 0, FALSE, NOW(), NOW())
		ON CONFLICT (user_id, competition_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, upsert, uuid.New(), userID, competitionID); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to upsert submission counter: %w", err)
	}

	var counter domain.SubmissionCounter
	lockQuery := `
		SELECT id, user_id, competition_id, paid_submissions, free_submissions,
		       total_submissions, next_submission_free, created_at, updated_at
		FROM user_submission_counters
		WHERE user_id = $1 AND competition_id = $2
		FOR UPDATE
	`
	err = tx.QueryRow(ctx, lockQuery, userID, competitionID).Scan(
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
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to lock submission counter: %w", err)
	}

	return &postgresSubmissionTx{tx: tx, counter: counter}, nil
}

func (s *postgresSubmissionTx) Counter() domain.SubmissionCounter {
	return s.counter
}

func (s *postgresSubmissionTx) CountEntries(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM competition_entries WHERE user_id = $1 AND competition_id = $2`
	err := s.tx.QueryRow(ctx, query, s.counter.UserID, s.counter.CompetitionID).Scan(&count)
	return count, err
}

func (s *postgresSubmissionTx) CreateTransaction(ctx context.Context, tx *domain.EntryTransaction) error {
	return insertTransaction(ctx, s.tx, tx)
}

func (s *postgresSubmissionTx) CreateEntries(ctx context.Context, entries []*domain.Entry) error {
	query := `
		INSERT INTO competition_entries (
			id, competition_id, user_id, transaction_id, guess_x, guess_y,
			was_free_entry, entry_price_cents, entry_number, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`
	for _, entry := range entries {
		err := s.tx.QueryRow(ctx, query,
			entry.ID,
			entry.CompetitionID,
			entry.UserID,
			entry.TransactionID,
			entry.GuessX,
			entry.GuessY,
			entry.WasFreeEntry,
			entry.EntryPriceCents,
			entry.EntryNumber,
		).Scan(&entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert entry %d: %w", entry.EntryNumber, err)
		}
	}
	return nil
}

// ApplyCounterDelta increments the counters on the locked row. The total is
// recomputed from the stored paid and free columns so the
// total == paid + free invariant holds no matter what the caller passes.
func (s *postgresSubmissionTx) ApplyCounterDelta(ctx context.Context, paidDelta, freeDelta int, nextSubmissionFree bool) (*domain.SubmissionCounter, error) {
	var counter domain.SubmissionCounter
	query := `
		UPDATE user_submission_counters
		SET
			paid_submissions = paid_submissions + $2,
			free_submissions = free_submissions + $3,
			total_submissions = paid_submissions + $2 + free_submissions + $3,
			next_submission_free = $4,
			updated_at = NOW()
		WHERE id = $1
		RETURNING id, user_id, competition_id, paid_submissions, free_submissions,
		          total_submissions, next_submission_free, created_at, updated_at
	`
	err := s.tx.QueryRow(ctx, query, s.counter.ID, paidDelta, freeDelta, nextSubmissionFree).Scan(
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
		return nil, fmt.Errorf("failed to apply counter delta: %w", err)
	}
	s.counter = counter
	return &counter, nil
}

func (s *postgresSubmissionTx) Commit(ctx context.Context) error {
	return s.tx.Commit(ctx)
}

func (s *postgresSubmissionTx) Rollback(ctx context.Context) error {
	return s.tx.Rollback(ctx)
}
