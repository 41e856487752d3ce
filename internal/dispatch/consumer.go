package dispatch

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/minjaecho/defectwatch-backend/internal/defects"
	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
	"github.com/minjaecho/defectwatch-backend/pkg/logger"
	"github.com/minjaecho/defectwatch-backend/pkg/pubsub"
)

// Consumer turns defect.classified events into operator alert cards.
// The event only carries the record id; the consumer re-reads the row
// so the card always shows current state.
type Consumer struct {
	defects      defects.Service
	sender       ChatSender
	subscription *gcppubsub.Subscriber
	logg         *logger.Logger
}

type processResult struct {
	ack  bool
	nack bool
}

// NewConsumer wires the alert consumer.
func NewConsumer(defectsSvc defects.Service, sender ChatSender, subscription *gcppubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if defectsSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "defect service required")
	}
	if sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "chat sender required")
	}
	if subscription == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscription required")
	}
	return &Consumer{
		defects:      defectsSvc,
		sender:       sender,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run blocks on the subscription until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, messageID string, data []byte) processResult {
	if c.logg != nil {
		ctx = c.logg.WithFields(ctx, map[string]any{"message_id": messageID})
	}

	event, err := pubsub.ParseDefectEvent(data)
	if err != nil {
		// Malformed payloads never become valid; drop them.
		c.logError(ctx, "dropping undecodable defect event", err)
		return processResult{ack: true}
	}
	if event.Type != pubsub.EventDefectClassified {
		return processResult{ack: true}
	}

	if c.logg != nil {
		ctx = c.logg.WithDefectID(ctx, event.DefectID)
	}

	record, err := c.defects.Get(ctx, event.DefectID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			// Retention may have swept the record before delivery.
			c.logError(ctx, "dropping event for missing defect", err)
			return processResult{ack: true}
		}
		c.logError(ctx, "defect lookup failed, will retry", err)
		return processResult{nack: true}
	}

	if err := c.sender.Send(ctx, BuildAlert(*record)); err != nil {
		c.logError(ctx, "alert delivery failed, will retry", err)
		return processResult{nack: true}
	}

	if c.logg != nil {
		c.logg.Info(ctx, "defect alert delivered")
	}
	return processResult{ack: true}
}

func (c *Consumer) logError(ctx context.Context, msg string, err error) {
	if c.logg != nil {
		c.logg.Error(ctx, msg, err)
	}
}
