package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jsphweid/levelup/constants"
	"github.com/jsphweid/levelup/model"
)

// Envelope is what travels on the channel: an event name, who sent it and
// the event itself, left encoded until a subscriber wants it.
type Envelope struct {
	Channel string          `json:"channel,omitempty"`
	Event   string          `json:"event"`
	UserID  string          `json:"userId"`
	Message json.RawMessage `json:"message"`
}

type Transport interface {
	Publish(ctx context.Context, env Envelope) error
	Subscribe(handler func(Envelope)) (cancel func())
}

// Bridge shares played notes between everyone on a channel. Notes coming
// back with the local user id are never handed to subscribers.
type Bridge struct {
	UserID    string
	Channel   string
	Transport Transport
	Logger    *log.Logger
}

func NewBridge(userID string, transport Transport, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{
		UserID:    userID,
		Channel:   constants.Channel,
		Transport: transport,
		Logger:    logger,
	}
}

func (b *Bridge) Publish(ctx context.Context, ev model.NoteEvent) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("could not encode note: %w", err)
	}
	env := Envelope{
		Channel: b.Channel,
		Event:   constants.NotePlayedEvent,
		UserID:  b.UserID,
		Message: msg,
	}
	if err := b.Transport.Publish(ctx, env); err != nil {
		return fmt.Errorf("could not publish %s: %w", constants.NotePlayedEvent, err)
	}
	return nil
}

// Subscribe calls handler for every note someone else plays until cancel
// is called.
func (b *Bridge) Subscribe(handler func(userID string, ev model.NoteEvent)) (cancel func()) {
	return b.Transport.Subscribe(func(env Envelope) {
		if env.Event != constants.NotePlayedEvent {
			return
		}
		if env.Channel != "" && env.Channel != b.Channel {
			return
		}
		if env.UserID == b.UserID {
			return
		}
		var ev model.NoteEvent
		if err := json.Unmarshal(env.Message, &ev); err != nil {
			b.Logger.Debug("dropping undecodable note", "from", env.UserID, "err", err)
			return
		}
		if err := ev.Validate(); err != nil {
			b.Logger.Debug("dropping bad note", "from", env.UserID, "err", err)
			return
		}
		handler(env.UserID, ev)
	})
}
