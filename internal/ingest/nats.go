package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"hrvguard/internal/config"
	"hrvguard/internal/model"
	"hrvguard/internal/telemetry"
)

func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("hrvguard"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// StartNATS subscribes to the configured subject, joining a queue group when
// one is set so several instances share the work.
func StartNATS(ctx context.Context, cfg *config.Manager, parser *Parser, out chan<- model.Job, metrics *telemetry.Metrics, logger *slog.Logger) {
	current := cfg.Get().Ingest.NATS
	if !current.Enabled {
		if logger != nil {
			logger.Info("nats ingest disabled")
		}
		return
	}
	nc, err := ConnectNATS(current.URL)
	if err != nil {
		if logger != nil {
			logger.Error("nats connect error", "url", current.URL, "err", err)
		}
		return
	}
	handler := func(msg *nats.Msg) {
		handleLine(ctx, string(msg.Data), "nats", cfg, parser, out, metrics, logger)
	}
	if current.Queue != "" {
		_, err = nc.QueueSubscribe(current.Subject, current.Queue, handler)
	} else {
		_, err = nc.Subscribe(current.Subject, handler)
	}
	if err != nil {
		if logger != nil {
			logger.Error("nats subscribe error", "subject", current.Subject, "err", err)
		}
		nc.Close()
		return
	}
	if logger != nil {
		logger.Info("nats ingest enabled", "url", current.URL, "subject", current.Subject, "queue", current.Queue)
	}
	go func() {
		<-ctx.Done()
		_ = nc.Drain()
	}()
}
