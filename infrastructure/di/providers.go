package di

import (
	"context"
	"fmt"
	"time"

	"collective-rides/application/ports"
	"collective-rides/application/services"
	"collective-rides/domain/authorization"
	"collective-rides/infrastructure/config"
	"collective-rides/infrastructure/messaging/eventbridge"
	"collective-rides/infrastructure/persistence/dynamodb"
	"collective-rides/infrastructure/scheduler"
	"collective-rides/interfaces/http/rest"
	"collective-rides/interfaces/http/rest/middleware"
	"collective-rides/pkg/auth"
	pkgerrors "collective-rides/pkg/errors"
	"collective-rides/pkg/observability"
	"collective-rides/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "collective-rides"

// ProvideLogLevel creates the level shared by the logger and the config watcher
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("failed to parse log level: %w", err)
	}
	return zap.NewAtomicLevelAt(level), nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() || cfg.IsLambda {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = level

	logger, err := zapCfg.Build(zap.Fields(
		zap.String("service", serviceName),
		zap.String("environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// ProvideAWSConfig creates AWS configuration. With tracing on every SDK call becomes an X-Ray subsegment.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.EnableTracing {
		awsv2.AWSV2Instrumentor(&awsCfg.APIOptions)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideTable names the single table and its indexes
func ProvideTable(cfg *config.Config) dynamodb.Table {
	return dynamodb.Table{
		Name:      cfg.DynamoDBTable,
		GSI1Index: cfg.GSI1IndexName, // invitee and user lookups
		GSI2Index: cfg.GSI2IndexName, // club name, status and expiry lookups
	}
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideClubRepository creates a club repository
func ProvideClubRepository(client *awsdynamodb.Client, table dynamodb.Table, tracer *observability.Tracer, logger *zap.Logger) ports.ClubRepository {
	return dynamodb.NewClubRepository(client, table, tracer, logger)
}

// ProvideMembershipRepository creates a membership repository
func ProvideMembershipRepository(client *awsdynamodb.Client, table dynamodb.Table, tracer *observability.Tracer, logger *zap.Logger) ports.MembershipRepository {
	return dynamodb.NewMembershipRepository(client, table, tracer, logger)
}

// ProvideInvitationRepository creates an invitation repository
func ProvideInvitationRepository(client *awsdynamodb.Client, table dynamodb.Table, tracer *observability.Tracer, logger *zap.Logger) ports.InvitationRepository {
	return dynamodb.NewInvitationRepository(client, table, tracer, logger)
}

// ProvideEventPublisher publishes to EventBridge, or only logs events in development
// and when no bus is configured
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" || cfg.IsDevelopment() {
		logger.Info("EventBridge publishing disabled, events are logged only")
		return eventbridge.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, eventbridge.DefaultBreakerConfig(), logger)
}

// ProvideMetrics creates CloudWatch metrics. Disabled metrics keep a nil client.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	if !cfg.EnableMetrics {
		return observability.NewMetrics(cfg.MetricsNamespace, nil, logger)
	}
	return observability.NewMetrics(cfg.MetricsNamespace, client, logger)
}

// ProvideCollector creates the Prometheus collector for long-lived processes; Lambda gets none
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if cfg.IsLambda {
		return nil
	}
	return observability.NewCollector("rides")
}

// ProvideClock returns the wall clock
func ProvideClock() utils.Clock {
	return utils.SystemClock{}
}

// ProvideCapabilityCache creates the process-wide system capability cache
func ProvideCapabilityCache(cfg *config.Config, clock utils.Clock) *authorization.SystemCapabilityCache {
	return authorization.NewSystemCapabilityCache(cfg.CapabilityCacheTTL, clock)
}

// ProvideAuthorizationService creates the authorization service
func ProvideAuthorizationService(
	memberships ports.MembershipRepository,
	cache *authorization.SystemCapabilityCache,
	logger *zap.Logger,
) *services.AuthorizationService {
	return services.NewAuthorizationService(memberships, cache, logger)
}

// ProvideClubService creates the club service
func ProvideClubService(
	clubs ports.ClubRepository,
	authz *services.AuthorizationService,
	publisher ports.EventPublisher,
	clock utils.Clock,
	logger *zap.Logger,
) *services.ClubService {
	return services.NewClubService(clubs, authz, publisher, clock, logger)
}

// ProvideMembershipService creates the membership service
func ProvideMembershipService(
	clubs ports.ClubRepository,
	memberships ports.MembershipRepository,
	authz *services.AuthorizationService,
	publisher ports.EventPublisher,
	clock utils.Clock,
	logger *zap.Logger,
) *services.MembershipService {
	return services.NewMembershipService(clubs, memberships, authz, publisher, clock, logger)
}

// ProvideInvitationService creates the invitation service
func ProvideInvitationService(
	clubs ports.ClubRepository,
	memberships ports.MembershipRepository,
	invitations ports.InvitationRepository,
	authz *services.AuthorizationService,
	publisher ports.EventPublisher,
	clock utils.Clock,
	cfg *config.Config,
	logger *zap.Logger,
) *services.InvitationService {
	return services.NewInvitationService(clubs, memberships, invitations, authz, publisher, clock, cfg.DefaultInvitationExpiryDays, logger)
}

// ProvideTokenValidator validates bearer tokens outside Lambda. Behind API Gateway the JWT
// authorizer has already done so and no validator is needed.
func ProvideTokenValidator(cfg *config.Config) (middleware.TokenValidator, error) {
	if cfg.IsLambda {
		return nil, nil
	}
	tokens, err := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	return tokens, nil
}

// ProvideRateLimiter creates the per-caller rate limiter
func ProvideRateLimiter(cfg *config.Config) *auth.RateLimiter {
	return auth.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
}

// ProvideErrorHandler creates the HTTP error renderer. Development responses carry internal detail.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	clubs *services.ClubService,
	memberships *services.MembershipService,
	invitations *services.InvitationService,
	tokens middleware.TokenValidator,
	limiter *auth.RateLimiter,
	errs *pkgerrors.ErrorHandler,
	collector *observability.Collector,
	metrics *observability.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(clubs, memberships, invitations, tokens, limiter, errs, collector, metrics, rest.RouterConfig{
		LambdaMode:         cfg.IsLambda,
		EnableCORS:         cfg.EnableCORS,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ServiceName:        serviceName,
	}, logger)
}

// ProvideSweeper creates the invitation expiry sweeper
func ProvideSweeper(
	invitations *services.InvitationService,
	cache *authorization.SystemCapabilityCache,
	collector *observability.Collector,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *scheduler.Sweeper {
	return scheduler.NewSweeper(invitations, logger,
		scheduler.WithCollector(collector),
		scheduler.WithMetrics(metrics),
		scheduler.WithCacheGauge(cache),
	)
}
