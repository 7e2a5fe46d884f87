package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/dunctk/snorkelforecast/internal/importer"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	refreshJob       *RefreshJob
	importService    *importer.Service
	batchSize        int
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	ImportService    *importer.Service
	ImportBatchSize  int
	Logger           zerolog.Logger
}

// JobMessage represents a background job request.
type JobMessage struct {
	JobType   string `json:"job_type"`
	BatchSize int    `json:"batch_size,omitempty"`
}

// Job types accepted on the subscription.
const (
	JobForecastRefresh = "forecast_refresh"
	JobTileImport      = "tile_import"
)

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	batchSize := cfg.ImportBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		refreshJob:       cfg.RefreshJob,
		importService:    cfg.ImportService,
		batchSize:        batchSize,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	// Parse message.
	var job JobMessage
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	// Handle based on job type.
	var err error
	switch job.JobType {
	case JobForecastRefresh:
		err = h.handleForecastRefresh(ctx)
	case JobTileImport:
		err = h.handleTileImport(ctx, job)
	default:
		logger.Warn().Str("job_type", job.JobType).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("job_type", job.JobType).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleForecastRefresh(ctx context.Context) error {
	result := h.refreshJob.Run(ctx)

	h.logger.Info().
		Dur("duration", result.Duration).
		Int("refreshed", result.Refreshed).
		Int("failed", result.Failed).
		Int("candidates", result.Candidates).
		Msg("forecast refresh completed")

	// Consider it successful if more than half succeeded.
	if result.Failed > result.Refreshed {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.Candidates)
	}
	return nil
}

func (h *PubSubHandler) handleTileImport(ctx context.Context, job JobMessage) error {
	if h.importService == nil {
		return fmt.Errorf("tile import requested but import service not configured")
	}

	batchSize := job.BatchSize
	if batchSize <= 0 {
		batchSize = h.batchSize
	}

	result, err := h.importService.ImportNextBatch(ctx, batchSize)
	if err != nil {
		return err
	}

	h.logger.Info().
		Int("imported", result.Imported).
		Int("failed", result.Failed).
		Int("spots", result.Spots).
		Int("remaining", result.Remaining).
		Msg("tile import batch completed")
	return nil
}
