package consumerWorker

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/zlog"

	"eventreg/internal/events"
)

type Consumer interface {
	Consume(handler func(routingKey string, body []byte) error) error
}

type Notifier interface {
	SendRegistrationNotice(ev events.RegistrationEvent) error
}

// Reader turns registration events into admin notices.
type Reader struct {
	RMQ      Consumer
	notifier Notifier
	done     chan struct{}
	cancel   context.CancelFunc
}

func NewReader(rmq Consumer, notifier Notifier) *Reader {
	return &Reader{
		RMQ:      rmq,
		notifier: notifier,
		done:     make(chan struct{}),
	}
}

func (r *Reader) handle(routingKey string, body []byte) error {
	ev, err := events.Decode(body)
	if err != nil {
		zlog.Logger.Error().
			Err(err).
			Msgf("Failed to unmarshal message: %s", string(body))
		return nil
	}
	if ev.Type == "" {
		ev.Type = routingKey
	}

	zlog.Logger.Info().
		Str("registration_id", ev.RegistrationID).
		Str("type", ev.Type).
		Msg("📩 Received message from RabbitMQ")

	switch ev.Type {
	case events.RegistrationCreated, events.ReceiptAttached:
	default:
		zlog.Logger.Warn().Str("type", ev.Type).Msg("unknown event type, skipping")
		return nil
	}

	if err := r.notifier.SendRegistrationNotice(ev); err != nil {
		return fmt.Errorf("notify %s for %s: %w", ev.Type, ev.RegistrationID, err)
	}
	return nil
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("🐇 RabbitMQ Reader started")

	go func() {
		defer close(r.done)

		if err := r.RMQ.Consume(r.handle); err != nil {
			zlog.Logger.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("🛑 RabbitMQ Reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
