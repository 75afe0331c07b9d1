/**
 * @description
 * This file contains the "buy 2 get 1 free" pricing rule evaluator. Two rule
 * variants coexist in the product and both are preserved here as named
 * strategies rather than unified:
 *
 *   - Cumulative: used by the single-entry path. A submission is free iff the
 *     counter's next-submission-free flag is set; the flag re-arms whenever the
 *     cumulative paid count reaches an even number and resets once consumed.
 *   - Batch-positional: used by the batch path. Every 3rd entry within the
 *     batch is free, regardless of any prior counter state.
 *
 * The two rules disagree on purpose: they mirror two independently evolved
 * entry points writing to the same counter row. Keeping them as distinct,
 * visibly named strategies makes the divergence testable instead of silently
 * "fixed".
 *
 * All functions here are pure; nothing in this file performs I/O.
 */

package app

import (
	"math"

	"github.com/babawina/entries-service/internal/domain"
)

// PricingStrategy identifies which rule variant priced a transaction.
type PricingStrategy string

const (
	PricingCumulative      PricingStrategy = "cumulative"
	PricingBatchPositional PricingStrategy = "batch_positional"
)

// SingleQuote is the pricing decision for one single-path submission.
type SingleQuote struct {
	IsFree      bool
	AmountCents int64
	// NextSubmissionFreeAfter is the flag value to store once this submission
	// completes: false after a free submission (the bonus is consumed), and
	// re-armed after a paid submission that brings the paid count to an even
	// number.
	NextSubmissionFreeAfter bool
}

// EvaluateCumulative applies the cumulative rule to the current counter snapshot.
func EvaluateCumulative(counter domain.SubmissionCounter, entryPriceCents int64) SingleQuote {
	if counter.NextSubmissionFree {
		return SingleQuote{
			IsFree:                  true,
			AmountCents:             0,
			NextSubmissionFreeAfter: false,
		}
	}
	return SingleQuote{
		IsFree:                  false,
		AmountCents:             entryPriceCents,
		NextSubmissionFreeAfter: (counter.PaidSubmissions+1)%2 == 0,
	}
}

// BatchQuote is the pricing decision for one batch-path submission.
type BatchQuote struct {
	// FreeByPosition holds one label per entry, in submission order.
	FreeByPosition   []bool
	PaidCount        int
	FreeCount        int
	TotalAmountCents int64
}

// EvaluateBatchPositional applies the batch-positional rule: the entry at
// 1-based position p is free iff p is a multiple of 3. Prior counter state does
// not participate.
func EvaluateBatchPositional(batchSize int, entryPriceCents int64) BatchQuote {
	freeByPosition := make([]bool, batchSize)
	paidCount := 0
	for i := range freeByPosition {
		if (i+1)%3 == 0 {
			freeByPosition[i] = true
		} else {
			paidCount++
		}
	}
	return BatchQuote{
		FreeByPosition:   freeByPosition,
		PaidCount:        paidCount,
		FreeCount:        batchSize - paidCount,
		TotalAmountCents: int64(paidCount) * entryPriceCents,
	}
}

// RandToCents converts a competition's rand-denominated entry price to cents.
// The conversion happens exactly once, at the service boundary; all arithmetic
// downstream is integer cents.
func RandToCents(priceRand float64) int64 {
	return int64(math.Round(priceRand * 100))
}

// SubmissionsUntilFree reports how many more paid submissions are needed before
// the next free one under the cumulative rule.
func SubmissionsUntilFree(counter domain.SubmissionCounter) int {
	if counter.NextSubmissionFree {
		return 0
	}
	return 2 - counter.PaidSubmissions%2
}
