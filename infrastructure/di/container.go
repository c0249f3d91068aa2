package di

import (
	"context"
	"errors"

	"collective-rides/application/ports"
	"collective-rides/application/services"
	"collective-rides/domain/authorization"
	"collective-rides/infrastructure/config"
	"collective-rides/infrastructure/scheduler"
	"collective-rides/interfaces/http/rest"
	"collective-rides/pkg/auth"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	LogLevel       zap.AtomicLevel
	ErrorHandler   *pkgerrors.ErrorHandler
	ClubRepo       ports.ClubRepository
	MembershipRepo ports.MembershipRepository
	InvitationRepo ports.InvitationRepository
	EventPublisher ports.EventPublisher
	Metrics        *observability.Metrics
	Collector      *observability.Collector
	Tracer         *observability.Tracer

	CapabilityCache      *authorization.SystemCapabilityCache
	AuthorizationService *services.AuthorizationService
	ClubService          *services.ClubService
	MembershipService    *services.MembershipService
	InvitationService    *services.InvitationService

	RateLimiter *auth.RateLimiter
	Router      *rest.Router
	Sweeper     *scheduler.Sweeper
}

// Validate checks that the pieces every entrypoint relies on were built
func (c *Container) Validate() error {
	var errs []error
	if c.Logger == nil {
		errs = append(errs, errors.New("logger not initialized"))
	}
	if c.ClubRepo == nil || c.MembershipRepo == nil || c.InvitationRepo == nil {
		errs = append(errs, errors.New("repositories not initialized"))
	}
	if c.EventPublisher == nil {
		errs = append(errs, errors.New("event publisher not initialized"))
	}
	if c.ClubService == nil || c.MembershipService == nil || c.InvitationService == nil {
		errs = append(errs, errors.New("services not initialized"))
	}
	if c.Router == nil {
		errs = append(errs, errors.New("router not initialized"))
	}
	return errors.Join(errs...)
}

// StartBackground starts the capability cache sweep. It runs until ctx is done or
// StopBackground is called; Lambda containers keep it for their whole lifetime.
func (c *Container) StartBackground(ctx context.Context) {
	if c.CapabilityCache != nil {
		c.CapabilityCache.Start(ctx)
	}
}

// StopBackground stops what StartBackground started
func (c *Container) StopBackground() {
	if c.CapabilityCache != nil {
		c.CapabilityCache.Stop()
	}
}

// ApplyConfig re-applies the settings that can change without a restart
func (c *Container) ApplyConfig(cfg *config.Config) {
	if err := c.LogLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		c.Logger.Warn("Ignoring invalid log level", zap.String("logLevel", cfg.LogLevel), zap.Error(err))
		return
	}
	c.Logger.Info("Configuration applied", zap.String("logLevel", cfg.LogLevel))
}
