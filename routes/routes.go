package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/thegupta1694/capstone/docs"
	"github.com/thegupta1694/capstone/handlers"
	"github.com/thegupta1694/capstone/middleware"
	"github.com/thegupta1694/capstone/models"
)

type Handlers struct {
	Auth        *handlers.AuthHandler
	User        *handlers.UserHandler
	Professor   *handlers.ProfessorHandler
	Team        *handlers.TeamHandler
	Application *handlers.ApplicationHandler
	Dashboard   *handlers.DashboardHandler
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Health backs /healthz; nil means always healthy.
	Health func(ctx context.Context) error
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Recoverer)
	router.Use(chiMiddleware.Timeout(30 * time.Second))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", healthz(opts.Health))
	if opts.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	router.Method(http.MethodGet, "/swagger/doc.json", docs.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	authenticate := middleware.Authenticate([]byte(opts.JWTSecret))

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Auth.Register)
		r.Post("/auth/login", h.Auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/auth/me", h.Auth.Me)
			r.Get("/profile", h.User.GetProfile)
			r.Patch("/profile", h.User.UpdateProfile)
			r.Get("/users", h.User.ListUsers)

			r.Route("/professors", func(r chi.Router) {
				r.Get("/", h.Professor.ListProfessors)
				r.Get("/{professorID}", h.Professor.GetProfessor)
				r.With(middleware.RequireRole(models.RoleTeacher, models.RoleAdmin)).
					Patch("/{professorID}", h.Professor.UpdateProfessor)
			})

			r.Route("/teams", func(r chi.Router) {
				r.Get("/", h.Team.ListTeams)
				r.Post("/", h.Team.CreateTeam)
				r.Get("/my", h.Team.MyTeam)
				r.Get("/invitations", h.Team.MyInvitations)
				r.Post("/leave", h.Team.Leave)
				r.Patch("/memberships/{membershipID}", h.Team.RespondInvitation)
				r.Delete("/memberships/{membershipID}", h.Team.RemoveMember)

				r.Route("/{teamID}", func(r chi.Router) {
					r.Get("/", h.Team.GetTeam)
					r.Delete("/", h.Team.DeleteTeam)
					r.Post("/invitations", h.Team.Invite)
					r.Put("/logo", h.Team.UploadLogo)
				})
			})

			r.Route("/applications", func(r chi.Router) {
				r.Get("/", h.Application.List)
				r.Post("/", h.Application.Submit)
				r.Route("/{applicationID}", func(r chi.Router) {
					r.Get("/", h.Application.Get)
					r.Patch("/response", h.Application.Respond)
					r.Post("/withdraw", h.Application.Withdraw)
				})
			})

			r.With(middleware.RequireRole(models.RoleAdmin)).Get("/admin/stats", h.Dashboard.Stats)
		})
	})
}

func healthz(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
