package app

import (
	"context"
	"errors"

	"github.com/babawina/entries-service/internal/domain"
	"github.com/babawina/entries-service/internal/store"
	"github.com/google/uuid"
)

// GetSubmissionStatus answers "is my next submission free, and how many more
// paid entries until the next free one" for one (user, competition) pair. It is
// strictly read-only: a missing counter row yields zero defaults and is never
// created here. Only a real submission creates counters.
func (s *Service) GetSubmissionStatus(ctx context.Context, userID, competitionID uuid.UUID) (*domain.SubmissionStatus, error) {
	status := &domain.SubmissionStatus{
		SubmissionsUntilFree: 2,
	}

	counter, err := s.repo.FindSubmissionCounter(ctx, userID, competitionID)
	if err != nil && !errors.Is(err, store.ErrCounterNotFound) {
		return nil, err
	}
	if counter != nil {
		status.NextSubmissionFree = counter.NextSubmissionFree
		status.PaidSubmissions = counter.PaidSubmissions
		status.FreeSubmissions = counter.FreeSubmissions
		status.TotalSubmissions = counter.TotalSubmissions
		status.SubmissionsUntilFree = SubmissionsUntilFree(*counter)
	}

	if _, err := s.repo.FindDefaultPaymentMethod(ctx, userID); err == nil {
		status.HasPaymentMethod = true
	} else if !errors.Is(err, store.ErrPaymentMethodNotFound) {
		return nil, err
	}

	return status, nil
}
