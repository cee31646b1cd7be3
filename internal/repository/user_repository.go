package repository

import (
	"context"
	"fmt"

	"github.com/ignatzorin/campus-trade/internal/models"
	"github.com/ignatzorin/campus-trade/internal/repository/common"
)

// UserRepository читает и создаёт пользователей.
type UserRepository struct{}

// NewUserRepository создаёт экземпляр репозитория.
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

// Create создаёт пользователя с начальным рейтингом.
func (r *UserRepository) Create(ctx context.Context, q Querier, user *models.User) error {
	if user.CreditScore.IsZero() {
		user.CreditScore = models.DefaultCreditScore
	}
	if err := q.GetContext(ctx, user, `
		INSERT INTO users (username, credit_score) VALUES ($1, $2)
		RETURNING *
	`, user.Username, user.CreditScore); err != nil {
		return fmt.Errorf("user repository: create %w", err)
	}
	return nil
}

// GetByID возвращает пользователя по идентификатору.
func (r *UserRepository) GetByID(ctx context.Context, q Querier, id int64) (*models.User, error) {
	user, err := common.GetByID[models.User](ctx, q, "users", id, ErrUserNotFound)
	if err != nil && err != ErrUserNotFound {
		return nil, fmt.Errorf("user repository: get by id %w", err)
	}
	return user, err
}
