//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"collective-rides/infrastructure/config"

	"github.com/google/wire"
)

// AWSSet builds the AWS SDK clients
var AWSSet = wire.NewSet(
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideErrorHandler,
	AWSSet,
	ProvideTable,
	ProvideTracer,
	ProvideClubRepository,
	ProvideMembershipRepository,
	ProvideInvitationRepository,
	ProvideEventPublisher,
	ProvideMetrics,
	ProvideCollector,
	ProvideClock,
	ProvideCapabilityCache,
	ProvideAuthorizationService,
	ProvideClubService,
	ProvideMembershipService,
	ProvideInvitationService,
	ProvideTokenValidator,
	ProvideRateLimiter,
	ProvideRouter,
	ProvideSweeper,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
