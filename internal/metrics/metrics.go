// Package metrics содержит метрики Prometheus сервиса редактора и воркера.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP
var (
	HTTPDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_durations_seconds",
		Help:    "Длительность HTTP запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method", "status"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Общее количество HTTP запросов",
	}, []string{"path", "method", "status"})

	ActiveRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_active_requests",
		Help: "Количество активных HTTP запросов",
	})
)

// Редактор
var (
	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "editor_open_sessions",
		Help: "Количество открытых сессий редактора",
	})

	SectionSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_section_saves_total",
		Help: "Сохранения секций по результату",
	}, []string{"section", "outcome"})

	SectionSaveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "editor_section_save_duration_seconds",
		Help:    "Длительность сохранения секции, включая загрузку файлов",
		Buckets: prometheus.DefBuckets,
	}, []string{"section"})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_uploads_total",
		Help: "Загрузки файлов по результату",
	}, []string{"outcome"})

	GuardInterceptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_guard_interceptions_total",
		Help: "Перехваченные навигационные намерения",
	}, []string{"intent"})

	GuardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_guard_decisions_total",
		Help: "Решения пользователя в диалоге несохраненных изменений",
	}, []string{"decision", "outcome"})

	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_operations_total",
		Help: "Количество операций с кэшем",
	}, []string{"operation", "status"})
)

// Воркер
var (
	ProcessedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_processed_messages_total",
		Help: "Общее количество обработанных сообщений",
	}, []string{"topic", "status"})

	ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_processing_duration_seconds",
		Help:    "Длительность обработки сообщений",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
)

// Результаты операций для меток outcome
const (
	OutcomeSaved         = "saved"
	OutcomeNothingToSave = "nothing_to_save"
	OutcomePartial       = "partial"
	OutcomeValidation    = "validation_error"
	OutcomeConflict      = "conflict"
	OutcomeNotFound      = "not_found"
	OutcomeTransient     = "transient_error"
	OutcomeBusy          = "in_progress"
	OutcomeError         = "error"
	OutcomeOK            = "ok"
)
