package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/campus-trade/internal/lock"
	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/metrics"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

const (
	sweepLockKey   = "orders:sweep"
	sweepBatchSize = 500
)

// SweepResult итог одного прохода.
type SweepResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// RechargeExpirer закрывает зависшие пополнения.
type RechargeExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// SweeperConfig параметры фонового прохода.
type SweeperConfig struct {
	Interval time.Duration
	LockTTL  time.Duration
	// NegotiationIdle порог для отчёта о торгах без ответа
	NegotiationIdle time.Duration
}

// Sweeper отменяет неоплаченные заказы с истёкшим сроком.
// Это единственный путь автоматической отмены.
type Sweeper struct {
	coord     Coordinator
	reader    repository.Querier
	orders    OrderRepository
	history   OrderHistoryRepository
	recharges RechargeExpirer
	audit     *AuditService
	locker    lock.Locker
	metrics   *metrics.Metrics
	cfg       SweeperConfig
	clock     Clock
}

// NewSweeper создаёт фоновый обработчик. recharges, audit и locker могут быть nil.
func NewSweeper(
	coord Coordinator,
	reader repository.Querier,
	orders OrderRepository,
	history OrderHistoryRepository,
	recharges RechargeExpirer,
	audit *AuditService,
	locker lock.Locker,
	m *metrics.Metrics,
	cfg SweeperConfig,
) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}
	if cfg.NegotiationIdle <= 0 {
		cfg.NegotiationIdle = 24 * time.Hour
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Sweeper{
		coord:     coord,
		reader:    reader,
		orders:    orders,
		history:   history,
		recharges: recharges,
		audit:     audit,
		locker:    locker,
		metrics:   m,
		cfg:       cfg,
		clock:     time.Now,
	}
}

// SweepExpired отменяет просроченные заказы по одному.
// Ошибка по отдельному заказу логируется и не прерывает проход.
func (s *Sweeper) SweepExpired(ctx context.Context) (SweepResult, error) {
	started := time.Now()
	now := s.clock()

	ids, err := s.orders.ListExpired(ctx, s.reader, now, sweepBatchSize)
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweeper: list expired %w", err)
	}

	var result SweepResult
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		cancelled, err := s.cancelExpired(ctx, id, now)
		if err != nil {
			result.Failed++
			logger.Log.WithError(err).WithField("order_id", id).Error("sweeper: cancel failed")
			continue
		}
		if cancelled {
			result.Processed++
		}
	}

	s.metrics.RecordSweep(result.Processed, result.Failed, time.Since(started).Seconds())
	if result.Processed > 0 || result.Failed > 0 {
		logger.Log.WithFields(logrus.Fields{
			"processed": result.Processed,
			"failed":    result.Failed,
		}).Info("sweeper: expired orders cancelled")
	}
	return result, nil
}

// cancelExpired перепроверяет заказ под блокировкой: его могли оплатить после выборки.
func (s *Sweeper) cancelExpired(ctx context.Context, orderID int64, now time.Time) (bool, error) {
	cancelled := false
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		order, err := s.orders.GetForUpdate(ctx, scope.Q(), orderID)
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusPendingPayment || !order.IsExpired(now) {
			return nil
		}

		order.Status = models.OrderStatusCancelled
		order.ExpireAt = nil
		if err := s.orders.Update(ctx, scope.Q(), order); err != nil {
			return err
		}
		if err := s.history.Append(ctx, scope.Q(), &models.OrderStatusChange{
			OrderID:    order.ID,
			FromStatus: models.OrderStatusPendingPayment,
			ToStatus:   models.OrderStatusCancelled,
			Remark:     "срок оплаты истёк",
		}); err != nil {
			return err
		}

		scope.AfterCommit(func() {
			s.audit.LogAction(SystemActorID, models.AuditOrderSwept, order.ID, "payment timeout")
		})
		cancelled = true
		return nil
	})
	return cancelled, err
}

// Run выполняет проходы с интервалом до отмены ctx.
// При нескольких экземплярах проход выполняет только тот, кто взял блокировку.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	logger.Log.WithField("interval", s.cfg.Interval.String()).Info("sweeper: started")
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("sweeper: stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	release, ok, err := s.locker.TryLock(ctx, sweepLockKey, s.cfg.LockTTL)
	if err != nil {
		logger.Log.WithError(err).Warn("sweeper: lock unavailable")
		return
	}
	if !ok {
		return
	}
	defer release()

	if _, err := s.SweepExpired(ctx); err != nil {
		logger.Log.WithError(err).Error("sweeper: pass failed")
	}

	s.reportStalled(ctx)

	if s.recharges != nil {
		if n, err := s.recharges.ExpireStale(ctx); err != nil {
			logger.Log.WithError(err).Error("sweeper: recharge expiry failed")
		} else if n > 0 {
			logger.Log.WithField("count", n).Info("sweeper: stale recharges failed")
		}
	}
}

// reportStalled сообщает о торгах, где предложение давно ждёт ответа.
// Такие заказы не отменяются автоматически и блокируют повторную покупку товара покупателем.
func (s *Sweeper) reportStalled(ctx context.Context) int {
	stalled, err := s.orders.ListStalledNegotiations(ctx, s.reader, s.clock().Add(-s.cfg.NegotiationIdle), sweepBatchSize)
	if err != nil {
		logger.Log.WithError(err).Warn("sweeper: stalled negotiations lookup failed")
		return 0
	}

	s.metrics.SetStalledNegotiations(len(stalled))
	if len(stalled) > 0 {
		ids := make([]int64, 0, len(stalled))
		for _, o := range stalled {
			ids = append(ids, o.ID)
		}
		logger.Log.WithFields(logrus.Fields{
			"count":     len(stalled),
			"order_ids": ids,
			"idle":      s.cfg.NegotiationIdle.String(),
		}).Warn("sweeper: negotiations waiting for a response")
	}
	return len(stalled)
}
