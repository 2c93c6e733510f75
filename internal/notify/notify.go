package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/pkg/messaging"
)

// EventImportFinished is the message type published after every import run.
const EventImportFinished = "import.finished"

type Notifier interface {
	Notify(ctx context.Context, ev model.ImportEvent) error
}

type Nop struct{}

func (Nop) Notify(context.Context, model.ImportEvent) error { return nil }

// Multi fans an event out to every notifier. All of them are called even
// when one fails.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev model.ImportEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BrokerNotifier publishes import events on a pub/sub channel.
type BrokerNotifier struct {
	broker  messaging.Broker
	channel string
}

func NewBrokerNotifier(broker messaging.Broker, channel string) *BrokerNotifier {
	return &BrokerNotifier{broker: broker, channel: channel}
}

func (n *BrokerNotifier) Notify(ctx context.Context, ev model.ImportEvent) error {
	msg := messaging.Message{Type: EventImportFinished, Payload: ev}
	if err := n.broker.Publish(ctx, n.channel, msg); err != nil {
		return fmt.Errorf("failed to publish import event: %w", err)
	}
	return nil
}

// DecodeEvent reads a message published by BrokerNotifier.
func DecodeEvent(data []byte) (model.ImportEvent, error) {
	var msg struct {
		Type    string            `json:"type"`
		Payload model.ImportEvent `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.ImportEvent{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if msg.Type != EventImportFinished {
		return model.ImportEvent{}, fmt.Errorf("unexpected event type %q", msg.Type)
	}
	return msg.Payload, nil
}
