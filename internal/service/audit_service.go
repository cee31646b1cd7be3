package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/campus-trade/internal/goroutine"
	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/models"
)

// SystemActorID автор действий, выполненных без участия пользователя.
const SystemActorID int64 = 0

const auditWriteTimeout = 5 * time.Second

// AuditRepository хранилище журнала действий.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByTarget(ctx context.Context, targetID int64, limit int) ([]models.AuditLog, error)
}

// AuditService пишет журнал действий в фоне. Ошибки записи только логируются.
type AuditService struct {
	repo AuditRepository
}

func NewAuditService(repo AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// LogAction записывает действие, не дожидаясь результата.
func (s *AuditService) LogAction(actorID int64, actionType string, targetID int64, detail string) {
	if s == nil || s.repo == nil {
		return
	}
	entry := &models.AuditLog{
		ActorID:    actorID,
		ActionType: actionType,
		TargetID:   targetID,
		Detail:     detail,
	}

	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		defer cancel()

		if err := s.repo.Create(ctx, entry); err != nil {
			logger.Log.WithError(err).WithFields(logrus.Fields{
				"actor_id":    actorID,
				"action_type": actionType,
				"target_id":   targetID,
			}).Error("audit: write failed")
		}
	})
}

// ListByTarget возвращает журнал по пользователю или сущности.
func (s *AuditService) ListByTarget(ctx context.Context, targetID int64, limit int) ([]models.AuditLog, error) {
	limit, _ = normalizePage(limit, 0)
	return s.repo.ListByTarget(ctx, targetID, limit)
}
