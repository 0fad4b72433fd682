package feedback

import (
	"context"
	"time"

	"mandate-matching/internal/common/aws"
	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
)

const EventWeightsUpdated = "WeightsUpdated"

type WeightsUpdated struct {
	MandateID   string             `json:"mandateId"`
	Weights     map[string]float64 `json:"weights"`
	Version     int64              `json:"version"`
	SignalsUsed int                `json:"signalsUsed"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type Publisher interface {
	PublishWeightsUpdated(ctx context.Context, event WeightsUpdated) error
}

// SNSPublisher announces weight updates on an SNS topic.
type SNSPublisher struct {
	client   *aws.SNSClient
	topicARN string
	logger   logger.Logger
}

func NewSNSPublisher(client *aws.SNSClient, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN, logger: log}
}

func (p *SNSPublisher) PublishWeightsUpdated(ctx context.Context, event WeightsUpdated) error {
	messageID, err := p.client.PublishJSON(ctx, p.topicARN, EventWeightsUpdated, event)
	if err != nil {
		return apperrors.NewEventPublishFailedError(p.topicARN, err)
	}
	p.logger.Debug("weights update published", map[string]interface{}{
		"mandateId": event.MandateID,
		"version":   event.Version,
		"messageId": messageID,
	})
	return nil
}

type NoopPublisher struct{}

func (NoopPublisher) PublishWeightsUpdated(context.Context, WeightsUpdated) error { return nil }
