// Package main implements the scheduled Lambda that expires overdue invitations.
// An EventBridge schedule rule invokes it; the long-lived server runs the same sweep on cron.
package main

import (
	"context"
	"log"

	"collective-rides/infrastructure/config"
	"collective-rides/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var container *di.Container

// SweepResult is returned to the invoking rule for the execution log
type SweepResult struct {
	Expired int `json:"expired"`
}

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.IsLambda = true

	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	if err := container.Validate(); err != nil {
		log.Fatalf("Container validation failed: %v", err)
	}
}

// HandleRequest runs one sweep per scheduled event
func HandleRequest(ctx context.Context, event events.CloudWatchEvent) (SweepResult, error) {
	container.Logger.Info("Invitation expiry triggered",
		zap.String("eventID", event.ID),
		zap.Time("scheduledAt", event.Time),
	)

	expired, err := container.Sweeper.RunOnce(ctx)
	if err != nil {
		return SweepResult{Expired: expired}, err
	}
	return SweepResult{Expired: expired}, nil
}

func main() {
	lambda.Start(HandleRequest)
}
