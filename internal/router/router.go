package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"robo-backend/internal/handlers"
	"robo-backend/internal/middleware"
)

func New(
	voiceHandler *handlers.VoiceHandler,
	healthHandler *handlers.HealthHandler,
	indexHandler *handlers.IndexHandler,
	limiter *middleware.RateLimiter,
	wsHandler http.HandlerFunc,
	corsOrigins []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/", indexHandler.Index)
	r.Get("/health", healthHandler.Health)

	// Model and microphone calls are expensive; budget them per IP.
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Post("/chat", voiceHandler.Chat)
		r.Post("/stt", voiceHandler.STT)
	})

	r.Post("/speak", voiceHandler.Speak)
	r.Post("/reset", voiceHandler.Reset)

	if wsHandler != nil {
		r.Get("/ws", wsHandler)
	}

	return r
}
