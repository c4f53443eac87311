package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/gomarket-admin/config"
	"github.com/athebyme/gomarket-admin/internal/adapters/logger"
	"github.com/athebyme/gomarket-admin/internal/adapters/messaging"
	"github.com/athebyme/gomarket-admin/internal/adapters/storage"
	"github.com/athebyme/gomarket-admin/internal/worker"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	if !cfg.Kafka.Enabled {
		log.Fatal("Воркеру нужна Kafka (kafka.enabled)")
	}

	// Запускаем HTTP сервер для метрик если они включены
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
		metricsServer = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}

		go func() {
			log.Info("Запуск HTTP сервера для метрик",
				interfaces.LogField{Key: "addr", Value: metricsServer.Addr})
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Ошибка запуска HTTP сервера для метрик",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	repo, err := openAudit(ctx, cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации журнала",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	if repo == nil {
		log.Fatal("Журнал отключен (audit.driver: none), воркеру некуда писать")
	}
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		log.Fatal("Ошибка миграции журнала",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Журнал инициализирован", interfaces.LogField{Key: "driver", Value: cfg.Audit.Driver})

	messagingClient, err := messaging.NewKafkaMessaging(messaging.KafkaConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     cfg.Kafka.GroupID,
		ClientID:    cfg.AppName + "-worker",
		PollTimeout: cfg.Kafka.PollTimeout,
	}, log)
	if err != nil {
		log.Fatal("Ошибка инициализации системы обмена сообщениями",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer messagingClient.Close()
	if err := messagingClient.EnsureTopic(ctx, cfg.Kafka.EventsTopic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		log.Fatal("Ошибка создания темы событий",
			interfaces.LogField{Key: "topic", Value: cfg.Kafka.EventsTopic},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Система обмена сообщениями инициализирована")

	recorder := worker.NewAuditRecorder(repo, log)
	unsubscribe, err := messagingClient.Subscribe(ctx, cfg.Kafka.EventsTopic, recorder.Handle)
	if err != nil {
		log.Fatal("Ошибка подписки на события редактора",
			interfaces.LogField{Key: "topic", Value: cfg.Kafka.EventsTopic},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Воркер запущен и готов к обработке сообщений",
		interfaces.LogField{Key: "topic", Value: cfg.Kafka.EventsTopic})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
	cancel()
	if err := unsubscribe(); err != nil {
		log.Error("Ошибка отмены подписки", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	if metricsServer != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	log.Info("Воркер корректно завершил работу")
}

func openAudit(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) (storage.AuditRepository, error) {
	opts := storage.Options{
		Driver:     cfg.Audit.Driver,
		MaxConns:   int32(cfg.Postgres.PoolSize),
		SQLitePath: cfg.SQLite.Path,
	}
	if opts.Driver == storage.DriverPostgres {
		dsn, err := cfg.PostgresDSN()
		if err != nil {
			return nil, err
		}
		opts.PostgresDSN = dsn
	}
	return storage.NewAuditRepository(ctx, opts, log)
}
