package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/campus-trade/internal/models"
)

// AuditRepository дописывает журнал действий.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create добавляет запись в журнал.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if err := r.db.QueryRowxContext(ctx, `
		INSERT INTO audit_logs (actor_id, action_type, target_id, detail)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, entry.ActorID, entry.ActionType, entry.TargetID, entry.Detail).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("audit repository: create %w", err)
	}
	return nil
}

// ListByTarget возвращает записи о пользователе или сущности.
func (r *AuditRepository) ListByTarget(ctx context.Context, targetID int64, limit int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	if err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM audit_logs WHERE target_id = $1 ORDER BY created_at DESC LIMIT $2
	`, targetID, limit); err != nil {
		return nil, fmt.Errorf("audit repository: list by target %w", err)
	}
	return entries, nil
}
