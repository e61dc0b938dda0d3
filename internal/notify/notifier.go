package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fieldscope/locus/internal/analysis"
)

const (
	streamName       = "LOCUS_EVENTS"
	subjectCompleted = "locus.analysis.completed"
)

// Publisher emits completion events to a JetStream stream. Publishing
// is best effort: a broker outage degrades to a warning log, never a
// failed analysis.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// New connects to NATS and ensures the events stream exists.
func New(ctx context.Context, natsURL string) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	p := &Publisher{nc: nc, js: js}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}

	slog.Info("event publisher ready", "stream", streamName)
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	_, err := p.js.Stream(ctx, streamName)
	if err == nil {
		return nil
	}

	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"locus.analysis.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", streamName, err)
	}

	slog.Info("created stream", "name", streamName)
	return nil
}

// AnalysisCompleted publishes a completion event for the result.
func (p *Publisher) AnalysisCompleted(ctx context.Context, res *analysis.Result) {
	event := NewEvent(res)
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event", "error", err)
		return
	}

	if _, err := p.js.Publish(ctx, subjectCompleted, data); err != nil {
		slog.Warn("failed to publish event", "subject", subjectCompleted, "error", err)
		return
	}

	slog.Debug("published event",
		"subject", subjectCompleted,
		"event_id", event.EventID,
		"address", event.Address,
	)
}

// Healthy reports whether the NATS connection is currently up.
func (p *Publisher) Healthy() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close drains the connection, flushing any buffered publishes.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			slog.Warn("error draining nats connection", "error", err)
		}
	}
	slog.Info("event publisher stopped")
}
