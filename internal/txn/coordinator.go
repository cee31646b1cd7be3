package txn

import (
	"context"

	"github.com/ignatzorin/campus-trade/internal/outbox"
	"github.com/ignatzorin/campus-trade/internal/repository"
)

// Runner открывает транзакцию хранилища.
type Runner interface {
	WithinTx(ctx context.Context, fn func(repository.Querier) error) error
}

// Publisher принимает события после фиксации.
type Publisher interface {
	Publish(ctx context.Context, events ...outbox.Event)
}

// Scope явный контекст транзакции. Его получает каждая операция, участвующая в общей фиксации.
type Scope struct {
	q           repository.Querier
	pending     []outbox.Event
	afterCommit []func()
}

// Q возвращает соединение транзакции.
func (s *Scope) Q() repository.Querier {
	return s.q
}

// Notify откладывает уведомление до успешной фиксации. При откате оно отбрасывается.
func (s *Scope) Notify(events ...outbox.Event) {
	s.pending = append(s.pending, events...)
}

// AfterCommit регистрирует действие, выполняемое только после фиксации.
func (s *Scope) AfterCommit(fn func()) {
	s.afterCommit = append(s.afterCommit, fn)
}

// Pending возвращает отложенные события.
func (s *Scope) Pending() []outbox.Event {
	return s.pending
}

// Coordinator выполняет изменения нескольких сущностей одной транзакцией.
type Coordinator struct {
	runner    Runner
	publisher Publisher
}

// NewCoordinator создаёт координатор. publisher может быть nil.
func NewCoordinator(runner Runner, publisher Publisher) *Coordinator {
	return &Coordinator{runner: runner, publisher: publisher}
}

// Run выполняет fn в одной транзакции. Ошибка из fn откатывает все изменения,
// события и отложенные действия выполняются только после фиксации.
func (c *Coordinator) Run(ctx context.Context, fn func(ctx context.Context, scope *Scope) error) error {
	scope := &Scope{}

	err := c.runner.WithinTx(ctx, func(q repository.Querier) error {
		scope.q = q
		scope.pending = scope.pending[:0]
		scope.afterCommit = scope.afterCommit[:0]
		return fn(ctx, scope)
	})
	if err != nil {
		return err
	}

	if c.publisher != nil && len(scope.pending) > 0 {
		c.publisher.Publish(ctx, scope.pending...)
	}
	for _, action := range scope.afterCommit {
		action()
	}

	return nil
}
