package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics содержит метрики ядра сделок
type Metrics struct {
	// Переходы заказов по статусам
	OrderTransitionsTotal *prometheus.CounterVec
	// Отклонённые бизнес-правилами операции
	RejectionsTotal *prometheus.CounterVec

	// Обход просроченных заказов
	SweepProcessedTotal prometheus.Counter
	SweepFailedTotal    prometheus.Counter
	SweepDuration       prometheus.Histogram
	// Торги без ответа дольше порога
	StalledNegotiations prometheus.Gauge

	// Движения по счетам
	LedgerOperationsTotal *prometheus.CounterVec

	// Повторы CAS при изменении рейтинга
	CreditConflictsTotal prometheus.Counter
	CreditChangesTotal   *prometheus.CounterVec

	NegotiationResponsesTotal *prometheus.CounterVec

	// Очередь исходящих событий
	OutboxDeliveriesTotal *prometheus.CounterVec
	OutboxDroppedTotal    prometheus.Counter
}

// New регистрирует метрики в reg. В тестах передаётся отдельный prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		OrderTransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_order_transitions_total",
				Help: "Количество переходов заказов между статусами",
			},
			[]string{"from", "to"},
		),
		RejectionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_rejections_total",
				Help: "Количество операций, отклонённых бизнес-правилами",
			},
			[]string{"operation"},
		),
		SweepProcessedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "campus_order_sweep_processed_total",
			Help: "Заказы, отменённые обходом по истечении срока оплаты",
		}),
		SweepFailedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "campus_order_sweep_failed_total",
			Help: "Заказы, которые обход не смог отменить",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "campus_order_sweep_duration_seconds",
			Help:    "Длительность одного обхода",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		StalledNegotiations: f.NewGauge(prometheus.GaugeOpts{
			Name: "campus_stalled_negotiations",
			Help: "Заказы в торге, где предложение давно ждёт ответа",
		}),
		LedgerOperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_ledger_operations_total",
				Help: "Списания и зачисления по результату",
			},
			[]string{"direction", "result"},
		),
		CreditConflictsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "campus_credit_cas_conflicts_total",
			Help: "Конфликты версий при изменении рейтинга",
		}),
		CreditChangesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_credit_changes_total",
				Help: "Изменения рейтинга по типу события",
			},
			[]string{"event_type"},
		),
		NegotiationResponsesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_negotiation_responses_total",
				Help: "Ответы на предложения цены",
			},
			[]string{"action"},
		),
		OutboxDeliveriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campus_outbox_deliveries_total",
				Help: "Доставки исходящих событий по приёмникам",
			},
			[]string{"sink", "result"},
		),
		OutboxDroppedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "campus_outbox_dropped_total",
			Help: "События, отброшенные из-за переполнения очереди",
		}),
	}
}

// RecordTransition записывает переход заказа
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.OrderTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordRejection записывает отказ бизнес-правила
func (m *Metrics) RecordRejection(operation string) {
	if m == nil {
		return
	}
	m.RejectionsTotal.WithLabelValues(operation).Inc()
}

// RecordSweep записывает итог обхода
func (m *Metrics) RecordSweep(processed, failed int, seconds float64) {
	if m == nil {
		return
	}
	m.SweepProcessedTotal.Add(float64(processed))
	m.SweepFailedTotal.Add(float64(failed))
	m.SweepDuration.Observe(seconds)
}

// SetStalledNegotiations записывает число зависших торгов
func (m *Metrics) SetStalledNegotiations(n int) {
	if m == nil {
		return
	}
	m.StalledNegotiations.Set(float64(n))
}

// RecordLedger записывает движение по счёту
func (m *Metrics) RecordLedger(direction string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.LedgerOperationsTotal.WithLabelValues(direction, result).Inc()
}

// RecordCreditConflict записывает конфликт версии рейтинга
func (m *Metrics) RecordCreditConflict() {
	if m == nil {
		return
	}
	m.CreditConflictsTotal.Inc()
}

// RecordCreditChange записывает применённое изменение рейтинга
func (m *Metrics) RecordCreditChange(eventType string) {
	if m == nil {
		return
	}
	m.CreditChangesTotal.WithLabelValues(eventType).Inc()
}

// RecordNegotiationResponse записывает ответ на предложение
func (m *Metrics) RecordNegotiationResponse(action string) {
	if m == nil {
		return
	}
	m.NegotiationResponsesTotal.WithLabelValues(action).Inc()
}

// RecordDelivery записывает результат доставки события
func (m *Metrics) RecordDelivery(sink string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.OutboxDeliveriesTotal.WithLabelValues(sink, result).Inc()
}

// RecordDropped записывает отброшенное событие
func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.OutboxDroppedTotal.Inc()
}
