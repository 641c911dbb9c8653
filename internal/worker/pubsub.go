package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	StatusJob        *StatusJob
	Logger           zerolog.Logger
}

// JobMessage is a worker job message.
//
// A facility_status message carries either a single update inline or a
// batch in Updates.
type JobMessage struct {
	JobType string `json:"job_type"`
	StatusUpdate
	Updates []StatusUpdate `json:"updates,omitempty"`
}

// Disposition tells the subscriber what to do with a message.
type Disposition int

const (
	// Ack removes the message from the subscription.
	Ack Disposition = iota
	// Nack asks for redelivery.
	Nack
)

// Processor decodes job messages and runs them. It holds no Pub/Sub state
// so it can be driven directly.
type Processor struct {
	statusJob *StatusJob
	logger    zerolog.Logger
}

// NewProcessor creates a message processor.
func NewProcessor(statusJob *StatusJob, logger zerolog.Logger) *Processor {
	return &Processor{statusJob: statusJob, logger: logger}
}

// Process runs the job encoded in data. Malformed messages and retryable
// failures are nacked; unknown job types are acked so they are not
// redelivered forever.
func (p *Processor) Process(ctx context.Context, data []byte) Disposition {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Error().Err(err).Msg("failed to parse message")
		return Nack
	}

	var err error
	switch msg.JobType {
	case JobTypeFacilityStatus:
		err = p.handleFacilityStatus(ctx, msg)
	case JobTypeHealthCheck:
		err = p.statusJob.HealthCheck(ctx)
	default:
		p.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return Ack
	}

	if err != nil {
		if errors.Is(err, ErrMalformedUpdate) {
			p.logger.Error().Err(err).Str("job_type", msg.JobType).Msg("malformed job message")
		} else {
			p.logger.Error().Err(err).Str("job_type", msg.JobType).Msg("job failed")
		}
		return Nack
	}
	return Ack
}

func (p *Processor) handleFacilityStatus(ctx context.Context, msg JobMessage) error {
	if len(msg.Updates) == 0 {
		return p.statusJob.Apply(ctx, msg.StatusUpdate)
	}

	for _, u := range msg.Updates {
		if err := u.Validate(); err != nil {
			return err
		}
	}

	result := p.statusJob.ApplyAll(ctx, msg.Updates)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d status updates failed", result.Failed, result.Total)
	}
	return nil
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        NewProcessor(cfg.StatusJob, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
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

	if h.processor.Process(logger.WithContext(ctx), msg.Data) == Nack {
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("message processed")
	msg.Ack()
}
