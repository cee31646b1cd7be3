package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrConflict сигнализирует, что CAS не прошёл и операцию можно повторить на свежих данных.
var ErrConflict = errors.New("optimistic concurrency conflict")

// ErrExhausted возвращается, когда все попытки закончились конфликтом.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy ограничивает число попыток. Пауза перед n-м повтором равна Step*n.
type Policy struct {
	MaxAttempts uint64
	Step        time.Duration
}

// DefaultPolicy три попытки с шагом 100мс.
var DefaultPolicy = Policy{MaxAttempts: 3, Step: 100 * time.Millisecond}

// linear реализует backoff.BackOff с линейно растущей паузой.
type linear struct {
	step time.Duration
	n    int64
}

func (l *linear) NextBackOff() time.Duration {
	l.n++
	return l.step * time.Duration(l.n)
}

func (l *linear) Reset() { l.n = 0 }

// OnConflict выполняет op, повторяя её только при ErrConflict.
// Любая другая ошибка возвращается сразу. onConflict вызывается перед каждым повтором и может быть nil.
func OnConflict(ctx context.Context, p Policy, op func(attempt int) error, onConflict func(attempt int)) error {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 1
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := op(attempt)
		if err == nil || errors.Is(err, ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(error, time.Duration) {
		if onConflict != nil {
			onConflict(attempt)
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&linear{step: p.Step}, p.MaxAttempts-1), ctx)

	err := backoff.RetryNotify(operation, policy, notify)
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
	}
	return err
}
