package rest

import (
	"net/http"

	"collective-rides/application/services"
	"collective-rides/interfaces/http/rest/handlers"
	"collective-rides/interfaces/http/rest/middleware"
	"collective-rides/pkg/auth"
	"collective-rides/pkg/common"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig holds the HTTP surface settings
type RouterConfig struct {
	LambdaMode         bool
	EnableCORS         bool
	CORSAllowedOrigins []string
	ServiceName        string
}

// Router creates and configures the HTTP router
type Router struct {
	clubs       *services.ClubService
	memberships *services.MembershipService
	invitations *services.InvitationService
	tokens      middleware.TokenValidator
	limiter     *auth.RateLimiter
	errors      *pkgerrors.ErrorHandler
	collector   *observability.Collector
	metrics     *observability.Metrics
	config      RouterConfig
	logger      *zap.Logger
}

// NewRouter creates a new router instance. tokens may be nil in Lambda mode; collector
// and metrics may be nil when disabled.
func NewRouter(
	clubs *services.ClubService,
	memberships *services.MembershipService,
	invitations *services.InvitationService,
	tokens middleware.TokenValidator,
	limiter *auth.RateLimiter,
	errs *pkgerrors.ErrorHandler,
	collector *observability.Collector,
	metrics *observability.Metrics,
	config RouterConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		clubs:       clubs,
		memberships: memberships,
		invitations: invitations,
		tokens:      tokens,
		limiter:     limiter,
		errors:      errs,
		collector:   collector,
		metrics:     metrics,
		config:      config,
		logger:      logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestContext)
	router.Use(rt.errors.Middleware)
	router.Use(middleware.Logger(rt.logger, rt.collector, rt.metrics))

	if rt.config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.config.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.RespondError(w, http.StatusNotFound, common.StandardErrorCodes.NotFound, "Route not found")
	})

	router.Get("/health", rt.healthCheck)
	if rt.collector != nil {
		router.Handle("/metrics", rt.collector.Handler())
	}

	clubHandler := handlers.NewClubHandler(rt.clubs, rt.errors, rt.logger)
	membershipHandler := handlers.NewMembershipHandler(rt.memberships, rt.errors, rt.logger)
	invitationHandler := handlers.NewInvitationHandler(rt.invitations, rt.errors, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.tokens, rt.config.LambdaMode, rt.errors, rt.logger))
		if rt.limiter != nil {
			r.Use(middleware.RateLimit(rt.limiter, rt.logger))
		}

		r.Route("/clubs", func(r chi.Router) {
			r.Post("/", clubHandler.CreateClub)
			r.Get("/", clubHandler.ListClubs)

			r.Route("/{clubID}", func(r chi.Router) {
				r.Get("/", clubHandler.GetClub)
				r.Put("/", clubHandler.UpdateClub)
				r.Post("/status", clubHandler.ChangeClubStatus)

				r.Route("/members", func(r chi.Router) {
					r.Post("/", membershipHandler.JoinClub)
					r.Get("/", membershipHandler.ListClubMembers)
					r.Delete("/me", membershipHandler.LeaveClub)
					r.Get("/{userID}", membershipHandler.GetMember)
					r.Delete("/{userID}", membershipHandler.RemoveMember)
					r.Put("/{userID}/role", membershipHandler.UpdateMemberRole)
					r.Post("/{userID}/{action}", membershipHandler.MemberAction)
				})

				r.Route("/invitations", func(r chi.Router) {
					r.Post("/", invitationHandler.CreateInvitation)
					r.Get("/", invitationHandler.ListClubInvitations)
				})
			})
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/memberships", membershipHandler.ListMyMemberships)
			r.Get("/invitations", invitationHandler.ListMyInvitations)
		})

		r.Route("/invitations/{invitationID}", func(r chi.Router) {
			r.Put("/", invitationHandler.ProcessInvitation)
			r.Delete("/", invitationHandler.CancelInvitation)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": rt.config.ServiceName,
	})
}
