/**
 * @description
 * Payment method management for the entries-service. The orchestrator can only
 * charge a previously saved default card, so the service exposes the flow for
 * collecting one: create a setup intent for the frontend, then mirror the
 * resulting payment method locally once the processor has it.
 *
 * The processor owns card and customer state; the rows managed here are a
 * read-mostly mirror for querying plus the at-most-one-default invariant.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/babawina/entries-service/internal/domain"
	"github.com/google/uuid"
)

// ErrPaymentMethodLimit is returned when a user tries to save more cards than allowed.
var ErrPaymentMethodLimit = errors.New("payment method limit reached")

// ensureStripeCustomer resolves the user's processor customer id, creating the
// customer lazily on first use. The lookup order is: locally mirrored id, then
// processor-side search by email, then creation. Searching before creating
// keeps the processor free of duplicate customer records for one user.
func (s *Service) ensureStripeCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	customerID, err := s.repo.FindStripeCustomerIDByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to look up stripe customer id: %w", err)
	}
	if customerID != "" {
		return customerID, nil
	}

	contact, err := s.contacts.GetUserContact(ctx, userID.String())
	if err != nil {
		return "", fmt.Errorf("failed to fetch user contact: %w", err)
	}

	existing, err := s.payments.FindCustomerByEmail(ctx, contact.Email)
	if err != nil {
		return "", fmt.Errorf("failed to search stripe customers: %w", err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	created, err := s.payments.CreateCustomer(ctx, contact.Email, contact.FullName)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	log.Printf("level=info component=app op=ensure_customer user_id=%s stripe_customer_id=%s", userID, created.ID)
	return created.ID, nil
}

// CreateCardSetupIntent prepares out-of-band card collection: it ensures the
// processor customer exists and returns a setup intent client secret for the
// frontend to complete. No card data touches this service.
func (s *Service) CreateCardSetupIntent(ctx context.Context, userID uuid.UUID) (clientSecret string, err error) {
	customerID, err := s.ensureStripeCustomer(ctx, userID)
	if err != nil {
		return "", err
	}

	intent, err := s.payments.CreateSetupIntent(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("failed to create setup intent: %w", err)
	}
	return intent.ClientSecret, nil
}

// SavePaymentMethod mirrors a processor-side payment method locally after the
// frontend completed the setup intent. The first card a user saves becomes
// their default; at most paymentMethodCap cards may exist per user.
func (s *Service) SavePaymentMethod(ctx context.Context, userID uuid.UUID, stripePaymentMethodID string) (*domain.PaymentMethod, error) {
	count, err := s.repo.CountPaymentMethods(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count payment methods: %w", err)
	}
	if count >= s.paymentMethodCap {
		return nil, ErrPaymentMethodLimit
	}

	processorMethod, err := s.payments.GetPaymentMethod(ctx, stripePaymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment method from stripe: %w", err)
	}

	customerID := processorMethod.Customer
	if customerID == "" {
		// Method not yet attached to a customer; resolve ours so the mirror row
		// still records who can be charged with it.
		customerID, err = s.ensureStripeCustomer(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	method := &domain.PaymentMethod{
		ID:                    uuid.New(),
		UserID:                userID,
		StripeCustomerID:      customerID,
		StripePaymentMethodID: processorMethod.ID,
		CardBrand:             processorMethod.Card.Brand,
		CardLast4:             processorMethod.Card.Last4,
		CardExpMonth:          processorMethod.Card.ExpMonth,
		CardExpYear:           processorMethod.Card.ExpYear,
		IsDefault:             count == 0,
	}
	if err := s.repo.CreatePaymentMethod(ctx, method); err != nil {
		return nil, fmt.Errorf("failed to save payment method: %w", err)
	}

	log.Printf("level=info component=app op=save_payment_method user_id=%s brand=%s last4=%s is_default=%t",
		userID, method.CardBrand, method.CardLast4, method.IsDefault)
	return method, nil
}

// ListPaymentMethods returns the user's mirrored cards, default first.
func (s *Service) ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]domain.PaymentMethod, error) {
	return s.repo.FindPaymentMethodsByUserID(ctx, userID)
}

// SetDefaultPaymentMethod switches the user's default card.
func (s *Service) SetDefaultPaymentMethod(ctx context.Context, userID uuid.UUID, paymentMethodID uuid.UUID) error {
	return s.repo.SetDefaultPaymentMethod(ctx, userID, paymentMethodID)
}
