package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventreg/internal/model"
)

// Memory is an in-process store with the same semantics as the Postgres
// driver: every write is eventually seen by each watcher. It backs local
// runs and tests.
type Memory struct {
	mu            sync.RWMutex
	registrations map[string]model.Registration
	details       []model.EventDetails
	settings      []model.EventSettings
	gallery       map[string]model.GalleryImage

	watchMu  sync.Mutex
	watchers map[*watcher]struct{}

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		registrations: make(map[string]model.Registration),
		gallery:       make(map[string]model.GalleryImage),
		watchers:      make(map[*watcher]struct{}),
		now:           time.Now,
	}
}

func (m *Memory) CreateRegistration(_ context.Context, reg *model.Registration) error {
	m.mu.Lock()
	reg.ID = uuid.NewString()
	ts := m.now()
	reg.Timestamp = &ts
	m.registrations[reg.ID] = *reg
	m.mu.Unlock()

	m.notify(Change{Collection: CollectionRegistrations, ID: reg.ID})
	return nil
}

func (m *Memory) RegistrationIDExists(_ context.Context, registrationID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.registrations {
		if r.RegistrationID == registrationID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) GetRegistration(_ context.Context, id string) (*model.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.registrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) ListRegistrations(_ context.Context) ([]model.Registration, error) {
	m.mu.RLock()
	out := make([]model.Registration, 0, len(m.registrations))
	for _, r := range m.registrations {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(*out[j].Timestamp)
	})
	return out, nil
}

func (m *Memory) FindRegistrationsByPhone(_ context.Context, canonicalPhone string) ([]model.Registration, error) {
	m.mu.RLock()
	var out []model.Registration
	for _, r := range m.registrations {
		if r.Phone == canonicalPhone {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(*out[j].Timestamp)
	})
	return out, nil
}

func (m *Memory) UpdateRegistration(_ context.Context, id string, patch model.RegistrationPatch) error {
	if patch.Empty() {
		return ErrEmptyPatch
	}
	m.mu.Lock()
	r, ok := m.registrations[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Year != nil {
		r.Year = *patch.Year
	}
	if patch.RollNumber != nil {
		r.RollNumber = *patch.RollNumber
	}
	if patch.Phone != nil {
		r.Phone = *patch.Phone
	}
	m.registrations[id] = r
	m.mu.Unlock()

	m.notify(Change{Collection: CollectionRegistrations, ID: id})
	return nil
}

func (m *Memory) AttachReceipt(_ context.Context, id string, receipt model.Receipt) error {
	m.mu.Lock()
	r, ok := m.registrations[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	r.ReceiptURL = receipt.URL
	r.CloudinaryID = receipt.CloudinaryID
	m.registrations[id] = r
	m.mu.Unlock()

	m.notify(Change{Collection: CollectionRegistrations, ID: id})
	return nil
}

func (m *Memory) DeleteRegistration(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.registrations[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.registrations, id)
	m.mu.Unlock()

	m.notify(Change{Collection: CollectionRegistrations, ID: id})
	return nil
}

func (m *Memory) EventDetails(_ context.Context) (*model.EventDetails, error) {
	m.mu.Lock()
	created := false
	if len(m.details) == 0 {
		d := model.DefaultEventDetails()
		d.ID = uuid.NewString()
		d.LastUpdated = m.now()
		m.details = append(m.details, d)
		created = true
	}
	d := m.details[0]
	m.mu.Unlock()

	if created {
		m.notify(Change{Collection: CollectionEventDetails, ID: d.ID})
	}
	return &d, nil
}

func (m *Memory) UpdateEventDetails(_ context.Context, id string, patch model.EventDetailsPatch) error {
	m.mu.Lock()
	idx := -1
	for i := range m.details {
		if m.details[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	d := &m.details[idx]
	if patch.EventDate != nil {
		d.EventDate = *patch.EventDate
	}
	if patch.EventTime != nil {
		d.EventTime = *patch.EventTime
	}
	if patch.EventLocation != nil {
		d.EventLocation = *patch.EventLocation
	}
	if patch.EventRestrictions != nil {
		d.EventRestrictions = *patch.EventRestrictions
	}
	d.LastUpdated = m.now()
	m.mu.Unlock()

	m.notify(Change{Collection: CollectionEventDetails, ID: id})
	return nil
}

func (m *Memory) EventSettings(_ context.Context) (*model.EventSettings, error) {
	m.mu.Lock()
	created := false
	if len(m.settings) == 0 {
		s := model.DefaultEventSettings()
		s.ID = uuid.NewString()
		s.LastUpdated = m.now()
		m.settings = append(m.settings, s)
		created = true
	}
	s := m.settings[0]
	m.mu.Unlock()

	if created {
		m.notify(Change{Collection: CollectionEventSettings, ID: s.ID})
	}
	return &s, nil
}

func (m *Memory) UpdateEventSettings(_ context.Context, id string, price int) error {
	m.mu.Lock()
	idx := -1
	for i := range m.settings {
		if m.settings[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.settings[idx].Price = price
	m.settings[idx].LastUpdated = m.now()
	m.mu.Unlock()

	m.notify(Change{Collection: CollectionEventSettings, ID: id})
	return nil
}

func (m *Memory) ListGallery(_ context.Context, filter model.GalleryFilter) ([]model.GalleryImage, error) {
	m.mu.RLock()
	out := make([]model.GalleryImage, 0, len(m.gallery))
	for _, img := range m.gallery {
		if filter.Category != "" && img.Category != filter.Category {
			continue
		}
		if filter.Featured && !img.Featured {
			continue
		}
		out = append(out, img)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) GetGalleryImage(_ context.Context, id string) (*model.GalleryImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.gallery[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &img, nil
}

func (m *Memory) CreateGalleryImage(_ context.Context, img *model.GalleryImage) error {
	m.mu.Lock()
	img.ID = uuid.NewString()
	img.Timestamp = m.now()
	m.gallery[img.ID] = *img
	m.mu.Unlock()

	m.notify(Change{Collection: CollectionGallery, ID: img.ID})
	return nil
}

func (m *Memory) UpdateGalleryImage(_ context.Context, id string, patch model.GalleryImagePatch) error {
	m.mu.Lock()
	img, ok := m.gallery[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if patch.Title != nil {
		img.Title = *patch.Title
	}
	if patch.Description != nil {
		img.Description = *patch.Description
	}
	if patch.Category != nil {
		img.Category = *patch.Category
	}
	if patch.Featured != nil {
		img.Featured = *patch.Featured
	}
	img.Timestamp = m.now()
	m.gallery[id] = img
	m.mu.Unlock()

	m.notify(Change{Collection: CollectionGallery, ID: id})
	return nil
}

func (m *Memory) DeleteGalleryImage(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.gallery[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.gallery, id)
	m.mu.Unlock()

	m.notify(Change{Collection: CollectionGallery, ID: id})
	return nil
}

// watcher queues changes for one Watch caller. Repeated changes to the same
// document collapse into one pending entry, so writers never block and no
// collection is skipped.
type watcher struct {
	mu      sync.Mutex
	pending []Change
	wake    chan struct{}
}

func (w *watcher) push(c Change) {
	w.mu.Lock()
	queued := false
	for _, p := range w.pending {
		if p == c {
			queued = true
			break
		}
	}
	if !queued {
		w.pending = append(w.pending, c)
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) take() []Change {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.pending
	w.pending = nil
	return out
}

func (m *Memory) Watch(ctx context.Context) (<-chan Change, error) {
	w := &watcher{wake: make(chan struct{}, 1)}
	m.watchMu.Lock()
	m.watchers[w] = struct{}{}
	m.watchMu.Unlock()

	out := make(chan Change)
	go func() {
		defer close(out)
		defer func() {
			m.watchMu.Lock()
			delete(m.watchers, w)
			m.watchMu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.wake:
			}
			for _, c := range w.take() {
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *Memory) notify(c Change) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	for w := range m.watchers {
		w.push(c)
	}
}
