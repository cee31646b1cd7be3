package service

import (
	"context"
	"fmt"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/outbox"
	"github.com/ignatzorin/campus-trade/internal/pkg/apperror"
	"github.com/ignatzorin/campus-trade/internal/repository"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

// Границы суммы одного пополнения
var (
	MinRechargeAmount = decimal.NewFromInt(1)
	MaxRechargeAmount = decimal.NewFromInt(10000)
)

// DefaultRechargeTimeout после этого срока незавершённое пополнение считается неуспешным.
const DefaultRechargeTimeout = 30 * time.Minute

// RechargeRepository хранилище заявок на пополнение.
type RechargeRepository interface {
	Create(ctx context.Context, q repository.Querier, recharge *models.Recharge) error
	GetForUpdate(ctx context.Context, q repository.Querier, id int64) (*models.Recharge, error)
	MarkCompleted(ctx context.Context, q repository.Querier, id int64, status string, at time.Time) error
	FailStale(ctx context.Context, q repository.Querier, before, now time.Time) (int64, error)
}

// RechargeService пополнение баланса через внешнюю оплату.
type RechargeService struct {
	coord     Coordinator
	reader    repository.Querier
	repo      RechargeRepository
	ledger    *LedgerService
	timeout   time.Duration
	reference func() string
	clock     Clock
}

// NewRechargeService создаёт сервис пополнений.
func NewRechargeService(coord Coordinator, reader repository.Querier, repo RechargeRepository, ledger *LedgerService, timeout time.Duration) (*RechargeService, error) {
	if timeout <= 0 {
		timeout = DefaultRechargeTimeout
	}
	reference, err := nanoid.Standard(15)
	if err != nil {
		return nil, fmt.Errorf("recharge service: reference generator %w", err)
	}
	return &RechargeService{
		coord:     coord,
		reader:    reader,
		repo:      repo,
		ledger:    ledger,
		timeout:   timeout,
		reference: reference,
		clock:     time.Now,
	}, nil
}

// Create открывает заявку на пополнение в статусе processing.
func (s *RechargeService) Create(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Recharge, Result, error) {
	if !validAmount(amount) || amount.LessThan(MinRechargeAmount) || amount.GreaterThan(MaxRechargeAmount) {
		return nil, Fail(fmt.Sprintf("сумма пополнения должна быть от %s до %s",
			MinRechargeAmount.StringFixed(2), MaxRechargeAmount.StringFixed(2))), nil
	}

	recharge := &models.Recharge{
		UserID:    userID,
		Reference: "RC" + s.reference(),
		Amount:    amount,
		Status:    models.RechargeStatusProcessing,
	}
	if err := s.repo.Create(ctx, s.reader, recharge); err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("recharge: create failed")
		return nil, Result{}, err
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":   userID,
		"reference": recharge.Reference,
		"amount":    amount.String(),
	}).Info("recharge: created")
	return recharge, Ok("заявка на пополнение создана"), nil
}

// Complete зачисляет пополнение на баланс и закрывает заявку одной транзакцией.
func (s *RechargeService) Complete(ctx context.Context, rechargeID, userID int64) (Result, error) {
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		recharge, err := s.repo.GetForUpdate(ctx, scope.Q(), rechargeID)
		if err != nil {
			return notFound(err, repository.ErrRechargeNotFound, apperror.New(apperror.ErrCodeNotFound, "заявка на пополнение не найдена"))
		}
		if recharge.UserID != userID {
			return apperror.ErrForbidden
		}
		if recharge.Status != models.RechargeStatusProcessing {
			return apperror.Conflict("заявка на пополнение уже обработана")
		}

		now := s.clock()
		if now.Sub(recharge.CreatedAt) > s.timeout {
			return apperror.Conflict("срок заявки на пополнение истёк")
		}

		ok, err := s.ledger.CreditIn(ctx, scope, userID, recharge.Amount, "recharge "+recharge.Reference)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.ErrInvalidAmount
		}
		if err := s.repo.MarkCompleted(ctx, scope.Q(), recharge.ID, models.RechargeStatusSuccess, now); err != nil {
			return err
		}

		scope.Notify(outbox.NewEvent(userID, models.TemplateRechargeSuccess, map[string]string{
			"amount":    recharge.Amount.StringFixed(2),
			"reference": recharge.Reference,
		}, outbox.Related(recharge.ID)))
		return nil
	})

	res, err := settle(err, "баланс пополнен")
	if err != nil {
		logger.Log.WithError(err).WithField("recharge_id", rechargeID).Error("recharge: complete failed")
		return Result{}, err
	}
	if !res.Success {
		logger.Log.WithFields(logrus.Fields{
			"recharge_id": rechargeID,
			"user_id":     userID,
		}).Info("recharge: rejected: " + res.Message)
	}
	return res, nil
}

// ExpireStale переводит просроченные заявки в failed.
func (s *RechargeService) ExpireStale(ctx context.Context) (int64, error) {
	now := s.clock()
	return s.repo.FailStale(ctx, s.reader, now.Add(-s.timeout), now)
}
