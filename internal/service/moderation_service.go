package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/outbox"
	"github.com/ignatzorin/campus-trade/internal/pkg/apperror"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

// Severity тяжесть нарушения по итогам разбора жалобы.
type Severity string

const (
	SeverityLight    Severity = "light"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityReport   Severity = "report"
)

var severityEvents = map[Severity]models.CreditEventType{
	SeverityLight:    models.CreditLightViolation,
	SeverityModerate: models.CreditModerateViolation,
	SeveritySevere:   models.CreditSevereViolation,
	SeverityReport:   models.CreditReportPenalty,
}

// ModerationService штрафы по итогам модерации.
type ModerationService struct {
	coord  Coordinator
	credit *CreditService
	audit  *AuditService
}

func NewModerationService(coord Coordinator, credit *CreditService, audit *AuditService) *ModerationService {
	return &ModerationService{coord: coord, credit: credit, audit: audit}
}

// PenalizeUser снижает рейтинг нарушителя. Журнал аудита и уведомление пишутся после фиксации.
func (s *ModerationService) PenalizeUser(ctx context.Context, adminID, userID int64, severity Severity, reason string) (*models.CreditHistory, Result, error) {
	event, ok := severityEvents[severity]
	if !ok {
		return nil, Fail(fmt.Sprintf("неизвестная тяжесть нарушения: %s", severity)), nil
	}

	var history *models.CreditHistory
	err := s.coord.Run(ctx, func(ctx context.Context, scope *txn.Scope) error {
		var err error
		history, err = s.credit.ApplyChangeIn(ctx, scope, userID, event, reason)
		if err != nil {
			return err
		}
		if history == nil {
			return apperror.ErrUserNotFound
		}

		scope.Notify(outbox.NewEvent(userID, models.TemplateReportResolution, map[string]string{
			"severity": string(severity),
			"delta":    history.Delta.String(),
			"score":    history.NewScore.String(),
			"reason":   reason,
		}, nil))
		scope.AfterCommit(func() {
			s.audit.LogAction(adminID, models.AuditCreditPenalty, userID,
				fmt.Sprintf("%s: %s (%s)", severity, reason, history.Delta.String()))
		})
		return nil
	})

	res, err := settle(err, "штраф применён")
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("moderation: penalty failed")
		return nil, Result{}, err
	}
	if !res.Success {
		return nil, res, nil
	}

	logger.Log.WithFields(logrus.Fields{
		"admin_id": adminID,
		"user_id":  userID,
		"severity": severity,
		"score":    history.NewScore.String(),
	}).Info("moderation: user penalized")
	return history, res, nil
}
