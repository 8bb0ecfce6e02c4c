package controller

import (
	"time"

	"github.com/tokoraya/checkout/internal/infrastructure/config"
	"github.com/tokoraya/checkout/internal/infrastructure/observability"
	customMW "github.com/tokoraya/checkout/internal/middleware"
	"github.com/tokoraya/checkout/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Manager     *service.Manager
	Attempts    AttemptLister
	Metrics     *observability.Metrics
	CORSConfig  config.CORSConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))
	r.Use(customMW.SecurityHeaders())

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	checkoutH := NewCheckoutController(deps.Manager, deps.Attempts)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/checkout/{invoiceID}", func(r chi.Router) {
		r.Post("/", checkoutH.Open)
		r.Get("/", checkoutH.Get)
		r.Delete("/", checkoutH.CloseSession)

		r.Post("/method", checkoutH.SelectMethod)
		r.Post("/bank", checkoutH.SelectBank)
		r.Post("/card", checkoutH.SelectCard)
		r.Post("/generate", checkoutH.Generate)
		r.Post("/card/submit", checkoutH.SubmitCard)
		r.Post("/wallet/confirm", checkoutH.ConfirmWallet)
		r.Post("/status", checkoutH.CheckStatus)
		r.Get("/attempts", checkoutH.ListAttempts)
	})

	return r
}
