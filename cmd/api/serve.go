package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/athebyme/gomarket-admin/config"
	_ "github.com/athebyme/gomarket-admin/docs"
	"github.com/athebyme/gomarket-admin/internal/adapters/cache"
	"github.com/athebyme/gomarket-admin/internal/adapters/logger"
	"github.com/athebyme/gomarket-admin/internal/adapters/messaging"
	"github.com/athebyme/gomarket-admin/internal/adapters/notify"
	"github.com/athebyme/gomarket-admin/internal/adapters/resource"
	"github.com/athebyme/gomarket-admin/internal/adapters/storage"
	"github.com/athebyme/gomarket-admin/internal/api"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/domain/services"
	"github.com/athebyme/gomarket-admin/internal/domain/tracking"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the editor HTTP and WebSocket API",
		Example: `  # Start with ./config/config.yaml and environment overrides
  gomarket-admin serve

  # Start with an explicit config file
  gomarket-admin serve --config /etc/gomarket-admin/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	schema, err := loadSchema(cfg.Editor.SchemaPath)
	if err != nil {
		return err
	}

	discardMode, err := services.ParseDiscardMode(cfg.Editor.DiscardMode)
	if err != nil {
		return err
	}

	drafts, err := openDrafts(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации кэша: %w", err)
	}
	defer drafts.Close()
	log.Info("Хранилище черновиков инициализировано",
		interfaces.LogField{Key: "redis", Value: cfg.Redis.Enabled})

	events, err := openMessaging(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации системы обмена сообщениями: %w", err)
	}
	defer events.Close()
	log.Info("Система обмена сообщениями инициализирована",
		interfaces.LogField{Key: "kafka", Value: cfg.Kafka.Enabled})

	audit, err := openAudit(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации журнала: %w", err)
	}
	var auditReader services.AuditReader
	if audit != nil {
		defer audit.Close()
		auditReader = audit
	}

	client, err := resource.NewClient(resource.Config{
		BaseURL:   cfg.Resource.BaseURL,
		Timeout:   cfg.Resource.Timeout,
		UserAgent: cfg.Resource.UserAgent,
	}, nil, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации клиента каталога: %w", err)
	}

	hub := notify.NewHub(log, cfg.Security.CORSAllowOrigins)

	editorService := services.NewEditorService(services.EditorDeps{
		Engine:   tracking.NewEngine(schema),
		Client:   client,
		Registry: services.NewSessionRegistry(drafts, cfg.Editor.SessionTTL, cfg.Editor.CleanupInterval, log),
		Notifier: notify.Multi{hub, notify.NewLogNotifier(log)},
		Events:   events,
		Audit:    auditReader,
		Logger:   log,
	}, services.EditorOptions{
		DiscardMode:    discardMode,
		EventsTopic:    cfg.Kafka.EventsTopic,
		MaxUploadBytes: cfg.Editor.MaxUploadBytes,
		ListPath:       cfg.Editor.ListPath,
	})
	browserService := services.NewBrowserService(client, cfg.Editor.BrowserTTL, cfg.Editor.PageSize, log)
	log.Info("Сервисы редактора инициализированы")

	router := api.SetupRouter(editorService, browserService, hub, log, api.RouterConfig{
		CORSAllowedOrigins: cfg.Security.CORSAllowOrigins,
		RequestTimeout:     cfg.Server.RequestTimeout,
		RateLimit:          cfg.Security.RateLimit,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		MaxUploadBytes:     cfg.Editor.MaxUploadBytes,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("ошибка запуска сервера: %w", err)
	case <-ctx.Done():
	}

	log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
		return err
	}
	log.Info("Сервер корректно завершил работу")
	return nil
}

func loadSchema(path string) (*models.Schema, error) {
	if path == "" {
		return models.DefaultSchema(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения схемы %s: %w", path, err)
	}
	return models.LoadSchema(data)
}

func openDrafts(ctx context.Context, cfg *config.Config) (interfaces.CachePort, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cfg.Editor.CleanupInterval), nil
	}
	return cache.NewRedisCache(ctx, cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
}

func openMessaging(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) (interfaces.MessagingPort, error) {
	if !cfg.Kafka.Enabled {
		return messaging.NewLogMessaging(log), nil
	}
	kafka, err := messaging.NewKafkaMessaging(messaging.KafkaConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     cfg.Kafka.GroupID,
		ClientID:    cfg.AppName,
		PollTimeout: cfg.Kafka.PollTimeout,
	}, log)
	if err != nil {
		return nil, err
	}
	if err := kafka.EnsureTopic(ctx, cfg.Kafka.EventsTopic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		_ = kafka.Close()
		return nil, err
	}
	return kafka, nil
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
