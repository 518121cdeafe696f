package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/prelook/internal/models"
	"github.com/digkill/prelook/internal/repository"
)

var (
	// ErrInsufficientCredits means the balance does not cover the charge. Nothing was changed.
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAccountNotFound     = errors.New("account not found")
)

// LedgerService owns every change to an account's credit balance.
type LedgerService struct {
	db           *sql.DB
	accounts     *repository.AccountRepository
	transactions *repository.CreditTransactionRepository
	keep         int
}

func NewLedgerService(db *sql.DB, accounts *repository.AccountRepository, transactions *repository.CreditTransactionRepository, keep int) *LedgerService {
	if keep <= 0 {
		keep = 100
	}
	return &LedgerService{db: db, accounts: accounts, transactions: transactions, keep: keep}
}

func (s *LedgerService) Balance(ctx context.Context, email string) (int, error) {
	balance, found, err := s.accounts.Balance(ctx, s.db, email)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrAccountNotFound
	}
	return balance, nil
}

// Debit removes amount from the balance and returns the new balance.
func (s *LedgerService) Debit(ctx context.Context, email string, amount int, reason string) (int, error) {
	return s.Charge(ctx, email, amount, reason, nil)
}

// Charge debits amount and runs record in the same transaction. If record
// fails the debit is rolled back; if the balance is short record never runs.
func (s *LedgerService) Charge(ctx context.Context, email string, amount int, reason string, record func(ctx context.Context, tx *sql.Tx) error) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("charge amount must be positive, got %d", amount)
	}
	var balance int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		ok, err := s.accounts.Debit(ctx, tx, email, amount)
		if err != nil {
			return err
		}
		current, found, err := s.accounts.Balance(ctx, tx, email)
		if err != nil {
			return err
		}
		if !found {
			return ErrAccountNotFound
		}
		if !ok {
			return ErrInsufficientCredits
		}
		balance = current
		entry := &models.CreditTransaction{
			AccountEmail: email,
			Amount:       -amount,
			Kind:         models.TransactionUsage,
			Description:  reason,
			BalanceAfter: balance,
		}
		if err := s.transactions.Append(ctx, tx, entry, s.keep); err != nil {
			return err
		}
		if record != nil {
			return record(ctx, tx)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Credit adds amount to the balance and returns the new balance.
func (s *LedgerService) Credit(ctx context.Context, email string, amount int, kind models.TransactionKind, reason string) (int, error) {
	var balance int
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		balance, err = s.CreditTx(ctx, tx, email, amount, kind, reason)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// CreditTx is Credit inside a caller's transaction.
func (s *LedgerService) CreditTx(ctx context.Context, q repository.DBTX, email string, amount int, kind models.TransactionKind, reason string) (int, error) {
	if amount < 0 {
		return 0, fmt.Errorf("credit amount must not be negative, got %d", amount)
	}
	if err := s.accounts.AddCredits(ctx, q, email, amount); err != nil {
		return 0, err
	}
	return s.logMovement(ctx, q, email, amount, kind, reason)
}

// RaiseTx lifts the balance to at least floor and logs the difference as a grant.
func (s *LedgerService) RaiseTx(ctx context.Context, q repository.DBTX, email string, floor int, reason string) (int, error) {
	before, found, err := s.accounts.Balance(ctx, q, email)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrAccountNotFound
	}
	if before >= floor {
		return before, nil
	}
	if err := s.accounts.RaiseCredits(ctx, q, email, floor); err != nil {
		return 0, err
	}
	return s.logMovement(ctx, q, email, floor-before, models.TransactionGrant, reason)
}

func (s *LedgerService) logMovement(ctx context.Context, q repository.DBTX, email string, amount int, kind models.TransactionKind, reason string) (int, error) {
	balance, found, err := s.accounts.Balance(ctx, q, email)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrAccountNotFound
	}
	entry := &models.CreditTransaction{
		AccountEmail: email,
		Amount:       amount,
		Kind:         kind,
		Description:  reason,
		BalanceAfter: balance,
	}
	if err := s.transactions.Append(ctx, q, entry, s.keep); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *LedgerService) Transactions(ctx context.Context, email string, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > s.keep {
		limit = s.keep
	}
	return s.transactions.List(ctx, email, limit)
}

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
