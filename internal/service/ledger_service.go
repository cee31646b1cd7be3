package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/metrics"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/outbox"
	"github.com/ignatzorin/campus-trade/internal/repository"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

// LedgerRepository описывает хранилище счетов.
type LedgerRepository interface {
	EnsureAccount(ctx context.Context, q repository.Querier, userID int64) error
	GetAccount(ctx context.Context, q repository.Querier, userID int64) (*models.Account, error)
	GetAccountForUpdate(ctx context.Context, q repository.Querier, userID int64) (*models.Account, error)
	SetBalance(ctx context.Context, q repository.Querier, userID int64, balance decimal.Decimal) error
	AppendEntry(ctx context.Context, q repository.Querier, entry *models.LedgerEntry) error
	ListEntries(ctx context.Context, q repository.Querier, userID int64, limit, offset int) ([]models.LedgerEntry, error)
}

// LedgerService списания и зачисления по виртуальным счетам.
type LedgerService struct {
	repo    LedgerRepository
	coord   Coordinator
	reader  repository.Querier
	metrics *metrics.Metrics
}

// NewLedgerService создаёт сервис счетов.
func NewLedgerService(repo LedgerRepository, coord Coordinator, reader repository.Querier, m *metrics.Metrics) *LedgerService {
	return &LedgerService{repo: repo, coord: coord, reader: reader, metrics: m}
}

// Debit списывает сумму в собственной транзакции.
func (s *LedgerService) Debit(ctx context.Context, userID int64, amount decimal.Decimal, reason string) (bool, error) {
	var ok bool
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		var err error
		ok, err = s.DebitIn(ctx, scope, userID, amount, reason)
		return err
	})
	return ok, err
}

// Credit зачисляет сумму в собственной транзакции.
func (s *LedgerService) Credit(ctx context.Context, userID int64, amount decimal.Decimal, reason string) (bool, error) {
	var ok bool
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		var err error
		ok, err = s.CreditIn(ctx, scope, userID, amount, reason)
		return err
	})
	return ok, err
}

// DebitIn списывает сумму внутри транзакции вызывающего.
// false без изменений, если счёта нет, средств не хватает или сумма некорректна.
func (s *LedgerService) DebitIn(ctx context.Context, scope *txn.Scope, userID int64, amount decimal.Decimal, reason string) (bool, error) {
	if !validAmount(amount) {
		s.metrics.RecordLedger(models.EntryDirectionDebit, false)
		return false, nil
	}

	acc, err := s.repo.GetAccountForUpdate(ctx, scope.Q(), userID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		s.reject(userID, models.EntryDirectionDebit, amount, "account missing")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger service: debit %w", err)
	}

	if acc.Balance.LessThan(amount) {
		s.reject(userID, models.EntryDirectionDebit, amount, "insufficient funds")
		return false, nil
	}

	if err := s.apply(ctx, scope, userID, acc.Balance.Sub(amount), amount, models.EntryDirectionDebit, reason); err != nil {
		return false, err
	}
	return true, nil
}

// CreditIn зачисляет сумму внутри транзакции вызывающего, создавая счёт при первом зачислении.
// false без изменений, если сумма некорректна или пользователя нет.
func (s *LedgerService) CreditIn(ctx context.Context, scope *txn.Scope, userID int64, amount decimal.Decimal, reason string) (bool, error) {
	if !validAmount(amount) {
		s.metrics.RecordLedger(models.EntryDirectionCredit, false)
		return false, nil
	}

	if err := s.repo.EnsureAccount(ctx, scope.Q(), userID); err != nil {
		return false, fmt.Errorf("ledger service: credit %w", err)
	}
	acc, err := s.repo.GetAccountForUpdate(ctx, scope.Q(), userID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		s.reject(userID, models.EntryDirectionCredit, amount, "unknown user")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger service: credit %w", err)
	}

	if err := s.apply(ctx, scope, userID, acc.Balance.Add(amount), amount, models.EntryDirectionCredit, reason); err != nil {
		return false, err
	}
	return true, nil
}

func (s *LedgerService) apply(ctx context.Context, scope *txn.Scope, userID int64, balance, amount decimal.Decimal, direction, reason string) error {
	if err := s.repo.SetBalance(ctx, scope.Q(), userID, balance); err != nil {
		return fmt.Errorf("ledger service: %s %w", direction, err)
	}

	entry := &models.LedgerEntry{
		UserID:       userID,
		Direction:    direction,
		Amount:       amount,
		BalanceAfter: balance,
		Reason:       reason,
	}
	if err := s.repo.AppendEntry(ctx, scope.Q(), entry); err != nil {
		return fmt.Errorf("ledger service: %s %w", direction, err)
	}

	s.metrics.RecordLedger(direction, true)
	scope.Notify(outbox.NewEvent(userID, models.TemplateBalanceChange, map[string]string{
		"direction": direction,
		"amount":    amount.StringFixed(2),
		"balance":   balance.StringFixed(2),
		"reason":    reason,
	}, nil))

	return nil
}

func (s *LedgerService) reject(userID int64, direction string, amount decimal.Decimal, why string) {
	s.metrics.RecordLedger(direction, false)
	logger.Log.WithFields(logrus.Fields{
		"user_id":   userID,
		"direction": direction,
		"amount":    amount.String(),
	}).Info("ledger: " + why)
}

// Balance возвращает текущий баланс. Пользователь без счёта имеет нулевой баланс.
func (s *LedgerService) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	acc, err := s.repo.GetAccount(ctx, s.reader, userID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Balance, nil
}

// History возвращает движения по счёту.
func (s *LedgerService) History(ctx context.Context, userID int64, limit, offset int) ([]models.LedgerEntry, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListEntries(ctx, s.reader, userID, limit, offset)
}

// validAmount сумма положительна и не точнее копеек.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
