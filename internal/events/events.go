// Package events publishes catalog change notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericreyes/pokedex/internal/model"
)

// JSONDataContentType is the content type of every event payload.
const JSONDataContentType = "application/json"

// Source identifies this service in published events.
const Source = "pokedex"

// Actions carried in the event type and the publish subject.
const (
	ActionCreated  = "created"
	ActionReplaced = "replaced"
	ActionPatched  = "patched"
	ActionDeleted  = "deleted"
)

// Event is the envelope published for every change.
type Event struct {
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	Type            string          `json:"type"`
	Subject         string          `json:"subject"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data,omitempty"`
}

// Action returns the trailing action segment of the event type.
func (e Event) Action() string {
	return e.Type[strings.LastIndex(e.Type, ".")+1:]
}

// Publisher delivers events. Implementations must be safe for concurrent
// use.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type pokemonEventData struct {
	PokedexNumber int            `json:"pokedex_number"`
	Pokemon       *model.Pokemon `json:"pokemon,omitempty"`
}

// NewPokemonEvent builds an event for action on the record with the given
// number. p is nil for deletions.
func NewPokemonEvent(action string, number int, p *model.Pokemon) (Event, error) {
	if number < 1 {
		return Event{}, fmt.Errorf("pokedex number is required")
	}

	data, err := json.Marshal(pokemonEventData{PokedexNumber: number, Pokemon: p})
	if err != nil {
		return Event{}, fmt.Errorf("marshaling pokemon event payload: %w", err)
	}

	return Event{
		ID:              "evt-" + uuid.NewString(),
		Source:          Source,
		Type:            "pokedex.pokemon." + action,
		Subject:         fmt.Sprintf("%d", number),
		Time:            time.Now().UTC(),
		DataContentType: JSONDataContentType,
		Data:            data,
	}, nil
}

// NoopPublisher discards every event. It is used when no broker is
// configured.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (NoopPublisher) Close() error { return nil }
