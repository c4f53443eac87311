package api

import (
	"net/http"
	"time"

	"github.com/athebyme/gomarket-admin/internal/api/handlers"
	"github.com/athebyme/gomarket-admin/internal/api/middleware"
	"github.com/athebyme/gomarket-admin/internal/domain/services"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig параметры HTTP слоя
type RouterConfig struct {
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	RateLimit          int
	RateLimitWindow    time.Duration
	MaxUploadBytes     int64
}

// SetupRouter настраивает маршрутизатор
func SetupRouter(
	editorService services.EditorServiceInterface,
	browserService services.BrowserServiceInterface,
	stream handlers.NotificationStream,
	logger interfaces.LoggerPort,
	cfg RouterConfig,
) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1000
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.Tracing)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Metrics)
	r.Use(middleware.RateLimiter(cfg.RateLimit, cfg.RateLimitWindow))

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	editorHandler := handlers.NewEditorHandler(editorService, logger, cfg.MaxUploadBytes)
	browserHandler := handlers.NewBrowserHandler(browserService, logger)
	notificationHandler := handlers.NewNotificationHandler(editorService, stream, logger)

	// WebSocket живет дольше любого таймаута запроса
	r.With(middleware.Session("sid")).Get("/ws/sessions/{sid}", notificationHandler.Subscribe)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(middleware.Shop)

		r.Route("/products/{id}", func(r chi.Router) {
			r.Post("/sessions", editorHandler.OpenSession)
			r.Get("/history", editorHandler.History)
		})

		// Сессии редактора
		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Use(middleware.Session("sid"))
			r.Get("/", editorHandler.GetSession)
			r.Delete("/", editorHandler.CloseSession)
			r.Get("/unload", editorHandler.Unload)

			r.Route("/sections/{section}", func(r chi.Router) {
				r.Patch("/", editorHandler.EditSection)
				r.Get("/diff", editorHandler.PreviewSection)
				r.Post("/save", editorHandler.SaveSection)
				r.Post("/items/{item}/save", editorHandler.SaveItem)
				r.Post("/uploads", editorHandler.StageUploads)
				r.Delete("/uploads/{ref}", editorHandler.RemoveUpload)
			})

			r.Post("/navigation", editorHandler.Navigate)
			r.Post("/navigation/resolve", editorHandler.Resolve)
		})

		// Справочники категорий и брендов
		r.Route("/browsers", func(r chi.Router) {
			r.Post("/", browserHandler.Open)
			r.Route("/{bid}", func(r chi.Router) {
				r.Get("/", browserHandler.View)
				r.Post("/drill", browserHandler.Drill)
				r.Post("/jump", browserHandler.Jump)
				r.Post("/page", browserHandler.SetPage)
				r.Post("/modal", browserHandler.OpenModal)
				r.Delete("/modal", browserHandler.CloseModal)
			})
		})
	})

	return r
}
