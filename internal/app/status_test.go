package app

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/babawina/entries-service/internal/domain"
	"github.com/babawina/entries-service/internal/store"
)

type statusRepoStub struct {
	store.Repository

	counter          *domain.SubmissionCounter
	counterErr       error
	defaultMethod    *domain.PaymentMethod
	defaultMethodErr error
}

func (s *statusRepoStub) FindSubmissionCounter(ctx context.Context, userID, competitionID uuid.UUID) (*domain.SubmissionCounter, error) {
	if s.counterErr != nil {
		return nil, s.counterErr
	}
	return s.counter, nil
}

func (s *statusRepoStub) FindDefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (*domain.PaymentMethod, error) {
	if s.defaultMethodErr != nil {
		return nil, s.defaultMethodErr
	}
	return s.defaultMethod, nil
}

func TestGetSubmissionStatus_NoCounterYieldsDefaults(t *testing.T) {
	repo := &statusRepoStub{
		counterErr:       store.ErrCounterNotFound,
		defaultMethodErr: store.ErrPaymentMethodNotFound,
	}
	svc := NewService(repo, &gatewayStub{}, &contactsStub{}, &producerStub{}, "zar", 3)

	status, err := svc.GetSubmissionStatus(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("GetSubmissionStatus returned error: %v", err)
	}

	if status.NextSubmissionFree {
		t.Fatal("a user with no counter has no free submission pending")
	}
	if status.TotalSubmissions != 0 {
		t.Fatalf("expected zero submissions, got %d", status.TotalSubmissions)
	}
	if status.SubmissionsUntilFree != 2 {
		t.Fatalf("expected two submissions until free, got %d", status.SubmissionsUntilFree)
	}
	if status.HasPaymentMethod {
		t.Fatal("expected no payment method on file")
	}
}

func TestGetSubmissionStatus_ReflectsCounterState(t *testing.T) {
	userID := uuid.New()
	repo := &statusRepoStub{
		counter: &domain.SubmissionCounter{
			PaidSubmissions:    2,
			FreeSubmissions:    1,
			TotalSubmissions:   3,
			NextSubmissionFree: true,
		},
		defaultMethod: defaultCard(userID),
	}
	svc := NewService(repo, &gatewayStub{}, &contactsStub{}, &producerStub{}, "zar", 3)

	status, err := svc.GetSubmissionStatus(context.Background(), userID, uuid.New())
	if err != nil {
		t.Fatalf("GetSubmissionStatus returned error: %v", err)
	}

	if !status.NextSubmissionFree {
		t.Fatal("expected the armed free flag to be reported")
	}
	if status.SubmissionsUntilFree != 0 {
		t.Fatalf("expected zero submissions until free, got %d", status.SubmissionsUntilFree)
	}
	if status.PaidSubmissions != 2 || status.FreeSubmissions != 1 || status.TotalSubmissions != 3 {
		t.Fatalf("expected counters paid=2 free=1 total=3, got %+v", status)
	}
	if !status.HasPaymentMethod {
		t.Fatal("expected the saved card to be reported")
	}
}
