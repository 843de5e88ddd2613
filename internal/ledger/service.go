// Package ledger owns per-user credit balances. All balance mutation in the
// system goes through this service; the repository's TryDebit is a single
// conditional statement, so concurrent debits on one account serialize at the
// database and can never drive the balance negative.
package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"photoai/internal/domain"
)

// Service exposes atomic credit operations over a CreditRepository.
type Service struct {
	credits     domain.CreditRepository
	signupGrant int64
	logger      zerolog.Logger
}

func NewService(credits domain.CreditRepository, signupGrant int64, logger zerolog.Logger) *Service {
	return &Service{credits: credits, signupGrant: signupGrant, logger: logger}
}

// Balance returns the owner's current balance. Owners without an account yet
// report zero.
func (s *Service) Balance(ctx context.Context, ownerID string) (int64, error) {
	bal, err := s.credits.Balance(ctx, ownerID)
	if err != nil {
		if err == domain.ErrNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("ledger: balance: %w", err)
	}
	return bal, nil
}

// Debit atomically subtracts amount from the owner's balance. Returns
// domain.ErrInsufficientCredits when the balance cannot cover the amount.
func (s *Service) Debit(ctx context.Context, ownerID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: non-positive debit %d: %w", amount, domain.ErrValidation)
	}
	ok, err := s.credits.TryDebit(ctx, ownerID, amount)
	if err != nil {
		return fmt.Errorf("ledger: debit: %w", err)
	}
	if !ok {
		return domain.ErrInsufficientCredits
	}
	s.logger.Debug().Str("owner_id", ownerID).Int64("amount", amount).Msg("ledger: debited")
	return nil
}

// Refund returns previously debited credits, used as the compensating action
// when a dispatch fails after a debit or when a terminal-transition race is
// lost.
func (s *Service) Refund(ctx context.Context, ownerID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("ledger: non-positive refund %d: %w", amount, domain.ErrValidation)
	}
	if err := s.credits.Credit(ctx, ownerID, amount); err != nil {
		return fmt.Errorf("ledger: refund: %w", err)
	}
	s.logger.Debug().Str("owner_id", ownerID).Int64("amount", amount).Msg("ledger: refunded")
	return nil
}

// EnsureAccount creates the owner's credit account with the signup grant if
// it does not exist yet. Safe to call repeatedly.
func (s *Service) EnsureAccount(ctx context.Context, ownerID string) error {
	if err := s.credits.EnsureAccount(ctx, ownerID, s.signupGrant); err != nil {
		return fmt.Errorf("ledger: ensure account: %w", err)
	}
	return nil
}
