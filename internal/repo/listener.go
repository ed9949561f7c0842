package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// notifyChannel is fed by the collection_changed() trigger in the migrations.
const notifyChannel = "collection_changed"

// Watch opens a dedicated LISTEN connection. After a reconnect pq delivers a
// nil notification; that is turned into a change on both singletons so
// consumers resync anything missed while disconnected.
func (r *Postgres) Watch(ctx context.Context) (<-chan Change, error) {
	listener := pq.NewListener(r.dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.log.Warn().Err(err).Int("event", int(ev)).Msg("postgres listener event")
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer listener.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil {
					emit(ctx, out, Change{Collection: CollectionEventSettings})
					emit(ctx, out, Change{Collection: CollectionEventDetails})
					continue
				}
				emit(ctx, out, parsePayload(n.Extra))
			case <-time.After(90 * time.Second):
				if err := listener.Ping(); err != nil {
					r.log.Warn().Err(err).Msg("postgres listener ping failed")
				}
			}
		}
	}()

	r.log.Info().Str("channel", notifyChannel).Msg("postgres watch started")
	return out, nil
}

// parsePayload splits "<collection>:<id>".
func parsePayload(payload string) Change {
	collection, id, _ := strings.Cut(payload, ":")
	return Change{Collection: collection, ID: id}
}

func emit(ctx context.Context, out chan<- Change, c Change) {
	select {
	case out <- c:
	case <-ctx.Done():
	}
}
