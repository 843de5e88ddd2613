package domain

import "time"

// CreditAccount holds a user's spendable balance. One account per owner.
// Balance is mutated only through the ledger's atomic operations and never
// goes negative.
type CreditAccount struct {
	OwnerID   string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
