package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL string
	// Name is the client connection name shown in server monitoring.
	Name string
	// SubjectPrefix is prepended to the event action, e.g.
	// "pokedex.pokemon" yields "pokedex.pokemon.created".
	SubjectPrefix string
}

// NATSPublisher publishes events on core NATS subjects.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger zerolog.Logger
}

// NewNATSPublisher connects to the server at cfg.URL. The connection
// reconnects indefinitely in the background.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if cfg.Name == "" {
		cfg.Name = Source
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "pokedex.pokemon"
	}

	logger := log.With().Str("component", "events").Logger()
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", cfg.URL, err)
	}

	return &NATSPublisher{conn: conn, prefix: cfg.SubjectPrefix, logger: logger}, nil
}

// Subject returns the NATS subject an event is published on.
func (p *NATSPublisher) Subject(evt Event) string {
	return p.prefix + "." + evt.Action()
}

// Publish encodes evt and sends it. Delivery is at most once.
func (p *NATSPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshaling event %s: %w", evt.ID, err)
	}
	if err := p.conn.Publish(p.Subject(evt), data); err != nil {
		return fmt.Errorf("publishing event %s: %w", evt.ID, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
