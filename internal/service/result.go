package service

import (
	"context"
	"errors"
	"time"

	"github.com/ignatzorin/campus-trade/internal/pkg/apperror"
	"github.com/ignatzorin/campus-trade/internal/txn"
)

// Result итог бизнес-операции. Отказ по правилам возвращается как Success=false, а не как ошибка.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Ok успешный результат.
func Ok(message string) Result {
	return Result{Success: true, Message: message}
}

// Fail отказ с причиной для пользователя.
func Fail(message string) Result {
	return Result{Success: false, Message: message}
}

// Coordinator выполняет функцию в одной транзакции.
type Coordinator interface {
	Run(ctx context.Context, fn func(ctx context.Context, scope *txn.Scope) error) error
}

// Clock источник текущего времени, в тестах подменяется.
type Clock func() time.Time

// settle переводит ошибку из транзакции в Result.
// AppError означает отказ по правилам, транзакция уже откатана. Остальное инфраструктурные сбои.
func settle(err error, okMessage string) (Result, error) {
	if err == nil {
		return Ok(okMessage), nil
	}
	if appErr, ok := apperror.AsAppError(err); ok && appErr.Code != apperror.ErrCodeInternal && appErr.Cause == nil {
		return Fail(appErr.Message), nil
	}
	return Result{}, err
}

// notFound подменяет ошибку репозитория на AppError для Result.
func notFound(err error, sentinel error, appErr *apperror.AppError) error {
	if errors.Is(err, sentinel) {
		return appErr
	}
	return err
}

var _ Coordinator = (*txn.Coordinator)(nil)
