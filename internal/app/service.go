/**
 * @description
 * This file contains the core business logic for the entries-service. The
 * `Service` struct orchestrates entry submissions, coordinating between the
 * database repository, the Stripe API client, the account-service client and
 * the message broker.
 *
 * Key features:
 * - Implements the two submission entry points (single and batch) with their
 *   distinct pricing rules, plus the read-only submission status projection.
 * - Serializes the read-decide-charge-persist sequence per (user, competition)
 *   key through the repository's locked submission transaction, so two
 *   concurrent requests can never both consume the same free-entry bonus.
 * - Charges the processor at most once per submission, with an idempotency key
 *   derived from the locked counter state.
 * - Records every charge attempt, including failures and zero-amount free
 *   grants, as an immutable transaction audit row.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/stripeclient, pkg/accountclient, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/babawina/entries-service/internal/domain"
	"github.com/babawina/entries-service/internal/store"
	"github.com/babawina/entries-service/pkg/accountclient"
	"github.com/babawina/entries-service/pkg/rabbitmq"
	"github.com/babawina/entries-service/pkg/stripeclient"
	"github.com/google/uuid"
)

// PaymentGateway is the slice of the Stripe client the orchestrator depends on.
type PaymentGateway interface {
	FindCustomerByEmail(ctx context.Context, email string) (*stripeclient.Customer, error)
	CreateCustomer(ctx context.Context, email, name string) (*stripeclient.Customer, error)
	CreateSetupIntent(ctx context.Context, customerID string) (*stripeclient.SetupIntent, error)
	GetPaymentMethod(ctx context.Context, paymentMethodID string) (*stripeclient.PaymentMethod, error)
	CreatePaymentIntent(ctx context.Context, params stripeclient.ChargeParams) (*stripeclient.PaymentIntent, error)
}

// ContactProvider supplies the user contact details needed for processor
// customer creation.
type ContactProvider interface {
	GetUserContact(ctx context.Context, userID string) (*accountclient.UserContact, error)
}

// Service provides the core business logic for entry submissions.
type Service struct {
	repo             store.Repository
	payments         PaymentGateway
	contacts         ContactProvider
	eventProducer    rabbitmq.Publisher
	currency         string
	paymentMethodCap int
}

// NewService creates a new entries service instance.
func NewService(repo store.Repository, payments PaymentGateway, contacts ContactProvider, producer rabbitmq.Publisher, currency string, paymentMethodCap int) *Service {
	if currency == "" {
		currency = "zar"
	}
	if paymentMethodCap <= 0 {
		paymentMethodCap = 3
	}
	return &Service{
		repo:             repo,
		payments:         payments,
		contacts:         contacts,
		eventProducer:    producer,
		currency:         currency,
		paymentMethodCap: paymentMethodCap,
	}
}

func validCoordinate(v float64) bool {
	return v >= 0 && v <= 1
}

// chargeIdempotencyKey derives the processor idempotency key from the locked
// counter state. A client retry of a timed-out request re-reads the same
// counter total and therefore reuses the same key, so the processor returns
// the original charge instead of creating a second one. A genuinely new
// submission observes an advanced counter and gets a fresh key, and a retry
// after swapping cards gets a fresh key through the payment method id.
func chargeIdempotencyKey(userID, competitionID uuid.UUID, counterTotal, batchSize int, paymentMethodID string) string {
	return fmt.Sprintf("entry:%s:%s:%d:%d:%s", userID, competitionID, counterTotal, batchSize, paymentMethodID)
}

// loadActiveCompetition fetches the competition and verifies it accepts entries now.
func (s *Service) loadActiveCompetition(ctx context.Context, competitionID uuid.UUID) (*domain.Competition, error) {
	comp, err := s.repo.FindCompetitionByID(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if !comp.IsAcceptingEntries(time.Now().UTC()) {
		return nil, ErrCompetitionNotActive
	}
	return comp, nil
}

// SubmitSingleEntry handles the single-entry path. Pricing follows the
// cumulative rule: the submission is free iff the counter's
// next-submission-free flag is set at decision time.
func (s *Service) SubmitSingleEntry(ctx context.Context, userID uuid.UUID, req domain.SingleEntryRequest) (*domain.SingleEntryResult, error) {
	// 1. Validate coordinates before touching any state.
	if !validCoordinate(req.Entry.X) || !validCoordinate(req.Entry.Y) {
		return nil, ErrInvalidCoordinates
	}

	// 2. Competition must be live and inside its entry window.
	comp, err := s.loadActiveCompetition(ctx, req.CompetitionID)
	if err != nil {
		return nil, err
	}
	entryPriceCents := RandToCents(comp.EntryPriceRand)

	// 3. Lock the counter row for this (user, competition). Everything from the
	// pricing decision through the counter update happens under this lock.
	sub, err := s.repo.BeginSubmission(ctx, userID, req.CompetitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to begin submission: %w", err)
	}
	counter := sub.Counter()

	// 4. Price the submission against the locked snapshot.
	quote := EvaluateCumulative(counter, entryPriceCents)

	txRecord := &domain.EntryTransaction{
		ID:               uuid.New(),
		UserID:           userID,
		CompetitionID:    req.CompetitionID,
		AmountCents:      quote.AmountCents,
		Currency:         s.currency,
		Status:           domain.TransactionStatusSucceeded,
		WasFree:          quote.IsFree,
		EntriesPurchased: 1,
		PricingStrategy:  string(PricingCumulative),
	}

	// 5. Charge when the submission is paid and the price is non-zero.
	if !quote.IsFree && quote.AmountCents > 0 {
		intent, chargeErr := s.chargeDefaultMethod(ctx, userID, req.CompetitionID, quote.AmountCents,
			fmt.Sprintf("BabaWina entry: %s", comp.Title),
			domain.ChargeMetadata{
				UserID:        userID,
				CompetitionID: req.CompetitionID,
				PaidEntries:   1,
				FreeEntries:   0,
				TotalEntries:  1,
			},
			counter.TotalSubmissions, 1,
		)
		if chargeErr != nil {
			_ = sub.Rollback(ctx)
			s.recordFailedCharge(ctx, txRecord, chargeErr)
			return nil, chargeErr
		}
		txRecord.PaymentIntentID = &intent.ID
		if intent.LatestCharge.ReceiptURL != "" {
			receiptURL := intent.LatestCharge.ReceiptURL
			txRecord.ReceiptURL = &receiptURL
		}
	}

	// 6. Persist the transaction, the entry and the counter delta atomically.
	paidDelta, freeDelta := 1, 0
	if quote.IsFree {
		paidDelta, freeDelta = 0, 1
	}

	result, err := s.persistSubmission(ctx, sub, txRecord, []domain.EntryCoordinates{req.Entry}, []bool{quote.IsFree}, quote.AmountCents, paidDelta, freeDelta, quote.NextSubmissionFreeAfter)
	if err != nil {
		return nil, err
	}

	updated := result.counter
	singleResult := &domain.SingleEntryResult{
		EntryID:              result.entryIDs[0],
		TransactionID:        txRecord.ID,
		WasFree:              quote.IsFree,
		AmountChargedCents:   quote.AmountCents,
		PaymentIntentID:      txRecord.PaymentIntentID,
		NextSubmissionFree:   updated.NextSubmissionFree,
		PaidSubmissions:      updated.PaidSubmissions,
		FreeSubmissions:      updated.FreeSubmissions,
		TotalSubmissions:     updated.TotalSubmissions,
		SubmissionsUntilFree: SubmissionsUntilFree(updated),
	}

	log.Printf("level=info component=app op=submit_single user_id=%s competition_id=%s was_free=%t amount_cents=%d entry_number=%d",
		userID, req.CompetitionID, quote.IsFree, quote.AmountCents, result.firstEntryNumber)
	return singleResult, nil
}

// SubmitEntryBatch handles the batch path. Pricing follows the batch-positional
// rule: every 3rd entry within this batch is free, independent of the counter.
// The whole batch succeeds or fails as one unit.
func (s *Service) SubmitEntryBatch(ctx context.Context, userID uuid.UUID, req domain.BatchEntryRequest) (*domain.BatchEntryResult, error) {
	// 1. All-or-nothing validation: one bad coordinate rejects the batch.
	if len(req.Entries) == 0 {
		return nil, ErrEmptyBatch
	}
	for _, coords := range req.Entries {
		if !validCoordinate(coords.X) || !validCoordinate(coords.Y) {
			return nil, ErrInvalidCoordinates
		}
	}

	// 2. Competition must be live and inside its entry window.
	comp, err := s.loadActiveCompetition(ctx, req.CompetitionID)
	if err != nil {
		return nil, err
	}
	entryPriceCents := RandToCents(comp.EntryPriceRand)

	// 3. Lock the counter row; the batch's charge and writes happen under it.
	sub, err := s.repo.BeginSubmission(ctx, userID, req.CompetitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to begin submission: %w", err)
	}
	counter := sub.Counter()

	// 4. Positional pricing over this batch only.
	quote := EvaluateBatchPositional(len(req.Entries), entryPriceCents)

	txRecord := &domain.EntryTransaction{
		ID:              uuid.New(),
		UserID:          userID,
		CompetitionID:   req.CompetitionID,
		Currency:        s.currency,
		Status:          domain.TransactionStatusSucceeded,
		PricingStrategy: string(PricingBatchPositional),
	}

	// 5. One aggregate charge for the paid portion, or a single zero-amount
	// free transaction when nothing is owed.
	if quote.PaidCount > 0 && entryPriceCents > 0 {
		txRecord.WasFree = false
		txRecord.EntriesPurchased = quote.PaidCount
		txRecord.AmountCents = quote.TotalAmountCents

		intent, chargeErr := s.chargeDefaultMethod(ctx, userID, req.CompetitionID, quote.TotalAmountCents,
			fmt.Sprintf("BabaWina entries x%d: %s", quote.PaidCount, comp.Title),
			domain.ChargeMetadata{
				UserID:        userID,
				CompetitionID: req.CompetitionID,
				PaidEntries:   quote.PaidCount,
				FreeEntries:   quote.FreeCount,
				TotalEntries:  len(req.Entries),
			},
			counter.TotalSubmissions, len(req.Entries),
		)
		if chargeErr != nil {
			_ = sub.Rollback(ctx)
			s.recordFailedCharge(ctx, txRecord, chargeErr)
			return nil, chargeErr
		}
		txRecord.PaymentIntentID = &intent.ID
		if intent.LatestCharge.ReceiptURL != "" {
			receiptURL := intent.LatestCharge.ReceiptURL
			txRecord.ReceiptURL = &receiptURL
		}
	} else {
		txRecord.WasFree = true
		txRecord.EntriesPurchased = len(req.Entries)
		txRecord.AmountCents = 0
	}

	// 6. Persist everything atomically. The batch path does not recompute the
	// next-submission-free flag; it belongs to the cumulative rule, and here the
	// counter is maintained for statistics only. The flag keeps whatever value
	// the single path last gave it.
	perEntryPrice := entryPriceCents
	if txRecord.WasFree {
		perEntryPrice = 0
	}
	result, err := s.persistSubmission(ctx, sub, txRecord, req.Entries, quote.FreeByPosition, perEntryPrice, quote.PaidCount, quote.FreeCount, counter.NextSubmissionFree)
	if err != nil {
		return nil, err
	}

	batchResult := &domain.BatchEntryResult{
		EntriesSubmitted:  len(req.Entries),
		PaidEntries:       quote.PaidCount,
		FreeEntries:       quote.FreeCount,
		TotalChargedCents: txRecord.AmountCents,
		TransactionID:     txRecord.ID,
		PaymentIntentID:   txRecord.PaymentIntentID,
		EntryIDs:          result.entryIDs,
	}

	log.Printf("level=info component=app op=submit_batch user_id=%s competition_id=%s entries=%d paid=%d free=%d amount_cents=%d",
		userID, req.CompetitionID, len(req.Entries), quote.PaidCount, quote.FreeCount, txRecord.AmountCents)
	return batchResult, nil
}

// chargeDefaultMethod resolves the user's default saved card and executes one
// off-session charge. Any failure maps to the payment error taxonomy; the
// caller is responsible for rolling back its submission transaction.
func (s *Service) chargeDefaultMethod(ctx context.Context, userID, competitionID uuid.UUID, amountCents int64, description string, metadata domain.ChargeMetadata, counterTotal, batchSize int) (*stripeclient.PaymentIntent, error) {
	method, err := s.repo.FindDefaultPaymentMethod(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentMethodNotFound) {
			return nil, ErrNoPaymentMethod
		}
		return nil, fmt.Errorf("failed to resolve default payment method: %w", err)
	}

	intent, err := s.payments.CreatePaymentIntent(ctx, stripeclient.ChargeParams{
		CustomerID:      method.StripeCustomerID,
		PaymentMethodID: method.StripePaymentMethodID,
		AmountCents:     amountCents,
		Currency:        s.currency,
		Description:     description,
		Metadata: map[string]string{
			"user_id":        metadata.UserID.String(),
			"competition_id": metadata.CompetitionID.String(),
			"paid_entries":   fmt.Sprintf("%d", metadata.PaidEntries),
			"free_entries":   fmt.Sprintf("%d", metadata.FreeEntries),
			"total_entries":  fmt.Sprintf("%d", metadata.TotalEntries),
		},
		IdempotencyKey: chargeIdempotencyKey(userID, competitionID, counterTotal, batchSize, method.StripePaymentMethodID),
	})
	if err != nil {
		log.Printf("level=warn component=app op=charge user_id=%s competition_id=%s amount_cents=%d outcome=failed err=%v",
			userID, competitionID, amountCents, err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if !intent.Succeeded() {
		// The intent is created confirm-now with error_on_requires_action, so a
		// non-succeeded status here means the processor left it in flight.
		log.Printf("level=warn component=app op=charge user_id=%s competition_id=%s amount_cents=%d outcome=non_terminal status=%s payment_intent_id=%s",
			userID, competitionID, amountCents, intent.Status, intent.ID)
		return nil, fmt.Errorf("%w: charge not completed (status %s)", ErrPaymentFailed, intent.Status)
	}
	return intent, nil
}

// recordFailedCharge writes the failed transaction audit row. It runs outside
// the submission transaction (already rolled back by the caller) so the audit
// trail survives even though no entries or counter changes were persisted.
func (s *Service) recordFailedCharge(ctx context.Context, txRecord *domain.EntryTransaction, chargeErr error) {
	if errors.Is(chargeErr, ErrNoPaymentMethod) {
		// Not a processor failure; nothing reached the processor, no audit row.
		return
	}
	failed := *txRecord
	failed.Status = domain.TransactionStatusFailed
	message := chargeErr.Error()
	failed.ErrorMessage = &message
	if err := s.repo.CreateAuditTransaction(ctx, &failed); err != nil {
		log.Printf("level=error component=app op=record_failed_charge user_id=%s competition_id=%s msg=\"failed to write audit row\" err=%v",
			failed.UserID, failed.CompetitionID, err)
	}
}

type persistedSubmission struct {
	entryIDs         []uuid.UUID
	firstEntryNumber int
	counter          domain.SubmissionCounter
}

// persistSubmission writes the transaction row, the entry rows and the counter
// delta inside the locked submission transaction, then commits. A failure after
// a successful charge is the worst case this service has: the charge cannot be
// rolled back, so the gap is flagged loudly for manual reconciliation instead.
func (s *Service) persistSubmission(ctx context.Context, sub store.SubmissionTx, txRecord *domain.EntryTransaction, coords []domain.EntryCoordinates, freeByPosition []bool, perEntryPriceCents int64, paidDelta, freeDelta int, nextSubmissionFree bool) (*persistedSubmission, error) {
	fail := func(step string, err error) (*persistedSubmission, error) {
		_ = sub.Rollback(ctx)
		s.flagPersistenceFailure(ctx, txRecord, step, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, step, err)
	}

	existingCount, err := sub.CountEntries(ctx)
	if err != nil {
		return fail("count entries", err)
	}

	if err := sub.CreateTransaction(ctx, txRecord); err != nil {
		return fail("create transaction", err)
	}

	entries := make([]*domain.Entry, len(coords))
	entryIDs := make([]uuid.UUID, len(coords))
	for i, c := range coords {
		price := perEntryPriceCents
		if freeByPosition[i] {
			price = 0
		}
		entries[i] = &domain.Entry{
			ID:              uuid.New(),
			CompetitionID:   txRecord.CompetitionID,
			UserID:          txRecord.UserID,
			TransactionID:   txRecord.ID,
			GuessX:          c.X,
			GuessY:          c.Y,
			WasFreeEntry:    freeByPosition[i],
			EntryPriceCents: price,
			EntryNumber:     existingCount + 1 + i,
		}
		entryIDs[i] = entries[i].ID
	}
	if err := sub.CreateEntries(ctx, entries); err != nil {
		return fail("create entries", err)
	}

	updated, err := sub.ApplyCounterDelta(ctx, paidDelta, freeDelta, nextSubmissionFree)
	if err != nil {
		return fail("apply counter delta", err)
	}

	if err := sub.Commit(ctx); err != nil {
		s.flagPersistenceFailure(ctx, txRecord, "commit", err)
		return nil, fmt.Errorf("%w: commit: %v", ErrPersistenceFailure, err)
	}

	s.publishEntrySubmitted(ctx, txRecord, len(coords), paidDelta, freeDelta)

	return &persistedSubmission{
		entryIDs:         entryIDs,
		firstEntryNumber: existingCount + 1,
		counter:          *updated,
	}, nil
}

// flagPersistenceFailure marks a persistence failure for reconciliation. When a
// charge already succeeded, money has moved without matching records; that case
// is logged CRITICAL and pushed to the broker so support can reconcile it. No
// compensating refund is attempted.
func (s *Service) flagPersistenceFailure(ctx context.Context, txRecord *domain.EntryTransaction, step string, err error) {
	if txRecord.PaymentIntentID == nil {
		log.Printf("level=error component=app op=persist_submission step=%s user_id=%s competition_id=%s err=%v",
			step, txRecord.UserID, txRecord.CompetitionID, err)
		return
	}

	log.Printf("CRITICAL: component=app op=persist_submission step=%s user_id=%s competition_id=%s payment_intent_id=%s amount_cents=%d msg=\"charge succeeded but records are incomplete; manual reconciliation required\" err=%v",
		step, txRecord.UserID, txRecord.CompetitionID, *txRecord.PaymentIntentID, txRecord.AmountCents, err)

	alert := rabbitmq.ReconciliationAlertEvent{
		UserID:          txRecord.UserID,
		CompetitionID:   txRecord.CompetitionID,
		PaymentIntentID: *txRecord.PaymentIntentID,
		AmountCents:     txRecord.AmountCents,
		Reason:          fmt.Sprintf("persistence failed at step %q: %v", step, err),
		Timestamp:       time.Now().UTC(),
	}
	if pubErr := s.eventProducer.PublishReconciliationAlert(ctx, alert); pubErr != nil {
		log.Printf("CRITICAL: component=app op=persist_submission msg=\"reconciliation alert publish failed\" payment_intent_id=%s err=%v",
			*txRecord.PaymentIntentID, pubErr)
	}
}

func (s *Service) publishEntrySubmitted(ctx context.Context, txRecord *domain.EntryTransaction, entriesCount, paidCount, freeCount int) {
	event := rabbitmq.EntrySubmittedEvent{
		UserID:        txRecord.UserID,
		CompetitionID: txRecord.CompetitionID,
		TransactionID: txRecord.ID,
		EntriesCount:  entriesCount,
		PaidEntries:   paidCount,
		FreeEntries:   freeCount,
		AmountCents:   txRecord.AmountCents,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.eventProducer.PublishEntrySubmitted(ctx, event); err != nil {
		log.Printf("level=warn component=app op=publish_entry_submitted transaction_id=%s err=%v", txRecord.ID, err)
	}
}
