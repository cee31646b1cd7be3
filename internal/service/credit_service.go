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
	"github.com/ignatzorin/campus-trade/internal/pkg/apperror"
	"github.com/ignatzorin/campus-trade/internal/repository"
	"github.com/ignatzorin/campus-trade/internal/retry"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

// CreditRepository описывает хранилище кредитного рейтинга.
type CreditRepository interface {
	GetCredit(ctx context.Context, q repository.Querier, userID int64) (*models.UserCredit, error)
	CompareAndSwapScore(ctx context.Context, q repository.Querier, userID, expectedVersion int64, score decimal.Decimal) (bool, error)
	AppendHistory(ctx context.Context, q repository.Querier, h *models.CreditHistory) error
	ListHistory(ctx context.Context, q repository.Querier, userID int64, limit, offset int) ([]models.CreditHistory, error)
}

// CreditService меняет кредитный рейтинг с оптимистичной блокировкой.
type CreditService struct {
	repo    CreditRepository
	coord   Coordinator
	reader  repository.Querier
	metrics *metrics.Metrics
	policy  retry.Policy
}

// NewCreditService создаёт сервис рейтинга.
func NewCreditService(repo CreditRepository, coord Coordinator, reader repository.Querier, m *metrics.Metrics, policy retry.Policy) *CreditService {
	return &CreditService{repo: repo, coord: coord, reader: reader, metrics: m, policy: policy}
}

// ApplyChange применяет событие в собственной транзакции.
func (s *CreditService) ApplyChange(ctx context.Context, userID int64, eventType models.CreditEventType, description string) (*models.CreditHistory, error) {
	var history *models.CreditHistory
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		var err error
		history, err = s.ApplyChangeIn(ctx, scope, userID, eventType, description)
		return err
	})
	return history, err
}

// ApplyChangeIn применяет событие внутри транзакции вызывающего.
// Для несуществующего пользователя возвращает nil без ошибки.
// Исчерпание попыток возвращается ошибкой и откатывает всю транзакцию.
func (s *CreditService) ApplyChangeIn(ctx context.Context, scope *txn.Scope, userID int64, eventType models.CreditEventType, description string) (*models.CreditHistory, error) {
	delta, ok := eventType.Delta()
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("неизвестный тип события рейтинга: %s", eventType))
	}

	var newScore decimal.Decimal
	err := retry.OnConflict(ctx, s.policy, func(int) error {
		credit, err := s.repo.GetCredit(ctx, scope.Q(), userID)
		if err != nil {
			return err
		}

		newScore = models.ClampCreditScore(credit.Score.Add(delta))
		swapped, err := s.repo.CompareAndSwapScore(ctx, scope.Q(), userID, credit.Version, newScore)
		if err != nil {
			return err
		}
		if !swapped {
			s.metrics.RecordCreditConflict()
			return retry.ErrConflict
		}
		return nil
	}, func(attempt int) {
		logger.Log.WithFields(logrus.Fields{
			"user_id": userID,
			"event":   eventType,
			"attempt": attempt,
		}).Warn("credit: version conflict, retrying")
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		logger.Log.WithField("user_id", userID).Warn("credit: user not found, change skipped")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credit service: apply %s %w", eventType, err)
	}

	history := &models.CreditHistory{
		UserID:      userID,
		EventType:   eventType,
		Delta:       delta,
		NewScore:    newScore,
		Description: description,
	}
	if err := s.repo.AppendHistory(ctx, scope.Q(), history); err != nil {
		return nil, fmt.Errorf("credit service: %w", err)
	}

	s.metrics.RecordCreditChange(string(eventType))
	return history, nil
}

// Score возвращает текущий рейтинг пользователя.
func (s *CreditService) Score(ctx context.Context, userID int64) (decimal.Decimal, error) {
	credit, err := s.repo.GetCredit(ctx, s.reader, userID)
	if err != nil {
		return decimal.Zero, notFound(err, repository.ErrUserNotFound, apperror.ErrUserNotFound)
	}
	return credit.Score, nil
}

// History возвращает журнал изменений рейтинга.
func (s *CreditService) History(ctx context.Context, userID int64, limit, offset int) ([]models.CreditHistory, error) {
	limit, offset = normalizePage(limit, offset)
	return s.repo.ListHistory(ctx, s.reader, userID, limit, offset)
}
