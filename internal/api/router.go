package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"adgpt-backend/internal/config"
	"adgpt-backend/internal/handlers"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler         *handlers.AuthHandler
	ConversationHandler *handlers.ConversationHandlers
	MessageHandler      *handlers.MessageHandlers
	UploadHandler       *handlers.UploadHandlers
	Authenticator       Authenticator
	Config              *config.Config
	Logger              zerolog.Logger
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(deps.Logger))
	r.Use(Metrics)
	r.Use(middleware.Recoverer)
	// Upstream completions can be slow.
	r.Use(middleware.Timeout(90 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if deps.UploadHandler != nil {
		r.Get("/uploads/{key}", deps.UploadHandler.HandleGet)
	}

	requireUser := CurrentUser(deps.Authenticator, deps.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if deps.AuthHandler == nil {
				panic("AuthHandler dependency is nil in router setup")
			}
			r.Post("/register", deps.AuthHandler.HandleRegister)
			r.Post("/login", deps.AuthHandler.HandleLogin)
			r.Post("/logout", deps.AuthHandler.HandleLogout)
			r.With(requireUser).Get("/me", deps.AuthHandler.HandleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireUser)

			if deps.ConversationHandler != nil {
				r.Route("/conversations", func(r chi.Router) {
					r.Get("/", deps.ConversationHandler.HandleList)
					r.Post("/", deps.ConversationHandler.HandleCreate)
					r.Get("/{conversationID}", deps.ConversationHandler.HandleGet)
					r.Delete("/{conversationID}", deps.ConversationHandler.HandleDelete)
				})
			} else {
				deps.Logger.Warn().Msg("ConversationHandler dependency is nil, skipping /api/conversations routes")
			}

			if deps.MessageHandler != nil {
				r.Post("/send-message", deps.MessageHandler.HandleSendMessage)
			} else {
				deps.Logger.Warn().Msg("MessageHandler dependency is nil, skipping /api/send-message route")
			}
		})
	})

	return r
}
