package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"eventreg/internal/model"
	"eventreg/internal/repo"
)

type Store interface {
	EventSettings(ctx context.Context) (*model.EventSettings, error)
	EventDetails(ctx context.Context) (*model.EventDetails, error)
	UpdateEventSettings(ctx context.Context, id string, price int) error
	UpdateEventDetails(ctx context.Context, id string, patch model.EventDetailsPatch) error
	repo.Watcher
}

// Hub owns the settings and details caches and the store watch feeding them.
// Start it once and Close it on shutdown.
type Hub struct {
	store    Store
	log      *zerolog.Logger
	Settings *Value[model.EventSettings]
	Details  *Value[model.EventDetails]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(store Store, log *zerolog.Logger) *Hub {
	h := &Hub{store: store, log: log}
	h.Settings = NewValue[model.EventSettings](func(ctx context.Context) (model.EventSettings, error) {
		s, err := store.EventSettings(ctx)
		if err != nil {
			return model.EventSettings{}, err
		}
		return *s, nil
	})
	h.Details = NewValue[model.EventDetails](func(ctx context.Context) (model.EventDetails, error) {
		d, err := store.EventDetails(ctx)
		if err != nil {
			return model.EventDetails{}, err
		}
		return *d, nil
	})
	return h
}

// Start loads both singletons and subscribes to store changes. Initial load
// failures are logged; the watch retries them on the next change.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return fmt.Errorf("broadcast hub already started")
	}

	if _, err := h.Settings.Refresh(ctx); err != nil {
		h.log.Error().Err(err).Msg("failed to load event settings")
	}
	if _, err := h.Details.Refresh(ctx); err != nil {
		h.log.Error().Err(err).Msg("failed to load event details")
	}

	wctx, cancel := context.WithCancel(context.Background())
	changes, err := h.store.Watch(wctx)
	if err != nil {
		cancel()
		return fmt.Errorf("watch event collections: %w", err)
	}
	h.cancel = cancel
	h.done = make(chan struct{})

	go h.run(wctx, changes)
	h.log.Info().Msg("event settings broadcast started")
	return nil
}

func (h *Hub) run(ctx context.Context, changes <-chan repo.Change) {
	defer close(h.done)
	for c := range changes {
		switch c.Collection {
		case repo.CollectionEventSettings:
			if _, err := h.Settings.Refresh(ctx); err != nil {
				h.log.Error().Err(err).Msg("failed to refresh event settings")
			}
		case repo.CollectionEventDetails:
			if _, err := h.Details.Refresh(ctx); err != nil {
				h.log.Error().Err(err).Msg("failed to refresh event details")
			}
		}
	}
}

// Close ends the store watch and waits for the loop to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel = nil
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	h.log.Info().Msg("event settings broadcast stopped")
}

// UpdatePrice writes the price and refreshes the cache without waiting for
// the push notification.
func (h *Hub) UpdatePrice(ctx context.Context, price int) (model.EventSettings, error) {
	cur, err := h.settingsID(ctx)
	if err != nil {
		return model.EventSettings{}, err
	}
	if err := h.store.UpdateEventSettings(ctx, cur, price); err != nil {
		return model.EventSettings{}, err
	}
	return h.Settings.Refresh(ctx)
}

// UpdateDetails is UpdatePrice for the details singleton.
func (h *Hub) UpdateDetails(ctx context.Context, patch model.EventDetailsPatch) (model.EventDetails, error) {
	cur, ok := h.Details.Current()
	if !ok {
		var err error
		if cur, err = h.Details.Refresh(ctx); err != nil {
			return model.EventDetails{}, err
		}
	}
	if err := h.store.UpdateEventDetails(ctx, cur.ID, patch); err != nil {
		return model.EventDetails{}, err
	}
	return h.Details.Refresh(ctx)
}

func (h *Hub) settingsID(ctx context.Context) (string, error) {
	if cur, ok := h.Settings.Current(); ok {
		return cur.ID, nil
	}
	cur, err := h.Settings.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return cur.ID, nil
}
