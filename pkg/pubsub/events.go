package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
)

// EventDefectClassified is emitted once enrichment has attached a
// classification to a defect record.
const EventDefectClassified = "defect.classified"

// DefectEvent is the envelope carried on the defect topic. Consumers
// re-read the record by id rather than trusting a snapshot in the payload.
type DefectEvent struct {
	Type       string    `json:"type"`
	DefectID   string    `json:"defect_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ParseDefectEvent decodes an event payload received from the topic.
func ParseDefectEvent(data []byte) (DefectEvent, error) {
	var event DefectEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return DefectEvent{}, err
	}
	if event.Type == "" || event.DefectID == "" {
		return DefectEvent{}, errors.New("defect event missing type or defect_id")
	}
	return event, nil
}

// DefectEventPublisher publishes defect lifecycle events.
type DefectEventPublisher struct {
	publisher *pubsub.Publisher
}

// DefectEventPublisher returns a typed publisher bound to the defect topic.
func (c *Client) DefectEventPublisher() *DefectEventPublisher {
	return &DefectEventPublisher{publisher: c.DefectPublisher()}
}

// PublishClassified emits defect.classified and waits for the server ack.
func (p *DefectEventPublisher) PublishClassified(ctx context.Context, defectID string) error {
	if p == nil || p.publisher == nil {
		return errors.New("defect event publisher not configured")
	}

	payload, err := json.Marshal(DefectEvent{
		Type:       EventDefectClassified,
		DefectID:   defectID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{Data: payload})
	_, err = result.Get(ctx)
	return err
}
