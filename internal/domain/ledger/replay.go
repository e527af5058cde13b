package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
)

// Replay folds entries of one book in insertion order and returns the
// resulting balance. Entries of other books are ignored.
func Replay(entries []*Entry, book types.LedgerBook) decimal.Decimal {
	ordered := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if e.Book == book {
			ordered = append(ordered, e)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	balance := decimal.Zero
	for _, e := range ordered {
		balance = balance.Add(e.Signed())
	}
	return balance.Round(2)
}

// Verify checks that replaying the BALANCE book reproduces the stored balance
func Verify(customerID string, stored decimal.Decimal, entries []*Entry) error {
	replayed := Replay(entries, types.LedgerBookBalance)
	if !replayed.Equal(stored.Round(2)) {
		return ierr.NewError("ledger replay does not match account balance").
			WithHint("The account balance has drifted from its ledger").
			WithReportableDetails(map[string]any{
				"customer_id": customerID,
				"stored":      stored.String(),
				"replayed":    replayed.String(),
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}
