package app

import (
	"testing"

	"github.com/babawina/entries-service/internal/domain"
)

func TestEvaluateCumulative(t *testing.T) {
	tests := []struct {
		name               string
		paidSubmissions    int
		nextSubmissionFree bool
		entryPriceCents    int64
		wantFree           bool
		wantAmount         int64
		wantFlagAfter      bool
	}{
		{
			name:            "first submission is paid and does not arm the flag",
			paidSubmissions: 0,
			entryPriceCents: 3000,
			wantFree:        false,
			wantAmount:      3000,
			wantFlagAfter:   false,
		},
		{
			name:            "second paid submission arms the flag",
			paidSubmissions: 1,
			entryPriceCents: 3000,
			wantFree:        false,
			wantAmount:      3000,
			wantFlagAfter:   true,
		},
		{
			name:               "armed flag makes the submission free and consumes the bonus",
			paidSubmissions:    2,
			nextSubmissionFree: true,
			entryPriceCents:    3000,
			wantFree:           true,
			wantAmount:         0,
			wantFlagAfter:      false,
		},
		{
			name:            "fourth paid submission re-arms the flag",
			paidSubmissions: 3,
			entryPriceCents: 3000,
			wantFree:        false,
			wantAmount:      3000,
			wantFlagAfter:   true,
		},
		{
			name:               "armed flag wins even at zero price",
			paidSubmissions:    2,
			nextSubmissionFree: true,
			entryPriceCents:    0,
			wantFree:           true,
			wantAmount:         0,
			wantFlagAfter:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := domain.SubmissionCounter{
				PaidSubmissions:    tt.paidSubmissions,
				NextSubmissionFree: tt.nextSubmissionFree,
			}
			quote := EvaluateCumulative(counter, tt.entryPriceCents)
			if quote.IsFree != tt.wantFree {
				t.Fatalf("expected free=%t, got %t", tt.wantFree, quote.IsFree)
			}
			if quote.AmountCents != tt.wantAmount {
				t.Fatalf("expected amount=%d, got %d", tt.wantAmount, quote.AmountCents)
			}
			if quote.NextSubmissionFreeAfter != tt.wantFlagAfter {
				t.Fatalf("expected flag after=%t, got %t", tt.wantFlagAfter, quote.NextSubmissionFreeAfter)
			}
		})
	}
}

// The cumulative rule over a run of single submissions must produce the
// paid, paid, free cadence regardless of where the run starts.
func TestEvaluateCumulative_Cadence(t *testing.T) {
	counter := domain.SubmissionCounter{}
	wantFree := []bool{false, false, true, false, false, true, false, false, true}

	for i, want := range wantFree {
		quote := EvaluateCumulative(counter, 3000)
		if quote.IsFree != want {
			t.Fatalf("submission %d: expected free=%t, got %t", i+1, want, quote.IsFree)
		}
		if quote.IsFree {
			counter.FreeSubmissions++
		} else {
			counter.PaidSubmissions++
		}
		counter.TotalSubmissions++
		counter.NextSubmissionFree = quote.NextSubmissionFreeAfter
	}
}

func TestEvaluateBatchPositional(t *testing.T) {
	tests := []struct {
		name            string
		batchSize       int
		entryPriceCents int64
		wantPaid        int
		wantFree        int
		wantTotal       int64
		wantFreeAt      []int
	}{
		{
			name:            "single entry batch is fully paid",
			batchSize:       1,
			entryPriceCents: 3000,
			wantPaid:        1,
			wantFree:        0,
			wantTotal:       3000,
		},
		{
			name:            "two entries never reach a free position",
			batchSize:       2,
			entryPriceCents: 3000,
			wantPaid:        2,
			wantFree:        0,
			wantTotal:       6000,
		},
		{
			name:            "third entry is free",
			batchSize:       3,
			entryPriceCents: 3000,
			wantPaid:        2,
			wantFree:        1,
			wantTotal:       6000,
			wantFreeAt:      []int{3},
		},
		{
			name:            "five entries at thirty rand charge four",
			batchSize:       5,
			entryPriceCents: 3000,
			wantPaid:        4,
			wantFree:        1,
			wantTotal:       12000,
			wantFreeAt:      []int{3},
		},
		{
			name:            "every third position is free in a long batch",
			batchSize:       9,
			entryPriceCents: 1000,
			wantPaid:        6,
			wantFree:        3,
			wantTotal:       6000,
			wantFreeAt:      []int{3, 6, 9},
		},
		{
			name:            "zero price still labels positions",
			batchSize:       3,
			entryPriceCents: 0,
			wantPaid:        2,
			wantFree:        1,
			wantTotal:       0,
			wantFreeAt:      []int{3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote := EvaluateBatchPositional(tt.batchSize, tt.entryPriceCents)
			if quote.PaidCount != tt.wantPaid {
				t.Fatalf("expected paid=%d, got %d", tt.wantPaid, quote.PaidCount)
			}
			if quote.FreeCount != tt.wantFree {
				t.Fatalf("expected free=%d, got %d", tt.wantFree, quote.FreeCount)
			}
			if quote.TotalAmountCents != tt.wantTotal {
				t.Fatalf("expected total=%d, got %d", tt.wantTotal, quote.TotalAmountCents)
			}
			if len(quote.FreeByPosition) != tt.batchSize {
				t.Fatalf("expected %d position labels, got %d", tt.batchSize, len(quote.FreeByPosition))
			}
			freeAt := map[int]bool{}
			for _, p := range tt.wantFreeAt {
				freeAt[p] = true
			}
			for i, free := range quote.FreeByPosition {
				if free != freeAt[i+1] {
					t.Fatalf("position %d: expected free=%t, got %t", i+1, freeAt[i+1], free)
				}
			}
		})
	}
}

func TestRandToCents(t *testing.T) {
	tests := []struct {
		name      string
		priceRand float64
		want      int64
	}{
		{name: "whole rand", priceRand: 30, want: 3000},
		{name: "cents precision", priceRand: 19.99, want: 1999},
		{name: "float representation error rounds correctly", priceRand: 0.29, want: 29},
		{name: "zero", priceRand: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RandToCents(tt.priceRand); got != tt.want {
				t.Fatalf("expected %d cents, got %d", tt.want, got)
			}
		})
	}
}

func TestSubmissionsUntilFree(t *testing.T) {
	tests := []struct {
		name               string
		paidSubmissions    int
		nextSubmissionFree bool
		want               int
	}{
		{name: "fresh counter needs two", paidSubmissions: 0, want: 2},
		{name: "one paid needs one more", paidSubmissions: 1, want: 1},
		{name: "armed flag needs zero", paidSubmissions: 2, nextSubmissionFree: true, want: 0},
		{name: "cycle restarts after an even paid count", paidSubmissions: 2, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := domain.SubmissionCounter{
				PaidSubmissions:    tt.paidSubmissions,
				NextSubmissionFree: tt.nextSubmissionFree,
			}
			if got := SubmissionsUntilFree(counter); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
