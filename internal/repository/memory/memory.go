// Package memory implements repository.Store in process memory.
//
// Every call is serialized behind one mutex and WithinTx holds that mutex for the whole unit
// of work, restoring a snapshot when fn fails. The store therefore behaves like a
// SERIALIZABLE database and is used to exercise the print protocol under concurrency.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cyberprint/internal/model"
	"cyberprint/internal/repository"
)

type state struct {
	mu      sync.Mutex
	docs    map[string]model.Document
	codes   map[string]model.OneTimeCode
	centers map[string]model.Center
	seq     int64
	order   map[string]int64
}

func (s *state) snapshot() *state {
	cp := &state{
		docs:    make(map[string]model.Document, len(s.docs)),
		codes:   make(map[string]model.OneTimeCode, len(s.codes)),
		centers: make(map[string]model.Center, len(s.centers)),
		order:   make(map[string]int64, len(s.order)),
		seq:     s.seq,
	}
	for k, v := range s.docs {
		cp.docs[k] = v
	}
	for k, v := range s.codes {
		cp.codes[k] = v
	}
	for k, v := range s.centers {
		cp.centers[k] = v
	}
	for k, v := range s.order {
		cp.order[k] = v
	}
	return cp
}

func (s *state) restore(from *state) {
	s.docs, s.codes, s.centers, s.order, s.seq = from.docs, from.codes, from.centers, from.order, from.seq
}

// Store is an in-memory repository.Store.
type Store struct {
	st   *state
	inTx bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{st: &state{
		docs:    map[string]model.Document{},
		codes:   map[string]model.OneTimeCode{},
		centers: map[string]model.Center{},
		order:   map[string]int64{},
	}}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.st.mu.Lock()
	return s.st.mu.Unlock
}

func (s *Store) Documents() repository.DocumentRepository { return documents{s} }
func (s *Store) Codes() repository.CodeRepository         { return codes{s} }
func (s *Store) Centers() repository.CenterRepository     { return centers{s} }

// WithinTx runs fn with exclusive access to the store.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	snap := s.st.snapshot()
	if err := fn(&Store{st: s.st, inTx: true}); err != nil {
		s.st.restore(snap)
		return err
	}
	return nil
}

type documents struct{ s *Store }

func (r documents) Create(_ context.Context, doc *model.Document) (*model.Document, error) {
	defer r.s.lock()()
	d := *doc
	r.s.st.docs[d.ID] = d
	r.s.st.seq++
	r.s.st.order[d.ID] = r.s.st.seq
	return &d, nil
}

func (r documents) FindByID(_ context.Context, id string) (*model.Document, error) {
	defer r.s.lock()()
	d, ok := r.s.st.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r documents) LockByID(ctx context.Context, id string) (*model.Document, error) {
	return r.FindByID(ctx, id)
}

// newestFirst orders by created_at then insertion order, both descending.
func (r documents) newestFirst(items []model.Document) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return r.s.st.order[items[i].ID] > r.s.st.order[items[j].ID]
	})
}

func (r documents) ListByCenter(_ context.Context, centerID string, statuses []model.Status) ([]model.Document, error) {
	defer r.s.lock()()
	want := make(map[model.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	items := make([]model.Document, 0)
	for _, d := range r.s.st.docs {
		if d.CenterID == centerID && want[d.Status] {
			items = append(items, d)
		}
	}
	r.newestFirst(items)
	return items, nil
}

func (r documents) ListByOwner(_ context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	defer r.s.lock()()
	all := make([]model.Document, 0)
	for _, d := range r.s.st.docs {
		if d.OwnerID == ownerID && d.Status != model.StatusDeleted {
			all = append(all, d)
		}
	}
	r.newestFirst(all)
	return &repository.PageResult[model.Document]{Items: page(all, pq), Total: len(all)}, nil
}

func (r documents) UpdateStatus(_ context.Context, id string, from, to model.Status, at time.Time) error {
	defer r.s.lock()()
	d, ok := r.s.st.docs[id]
	if !ok || d.Status != from {
		return repository.ErrStaleState
	}
	d.Status = to
	d.UpdatedAt = at
	r.s.st.docs[id] = d
	return nil
}

func (r documents) MarkDelivered(_ context.Context, id string, at time.Time) error {
	defer r.s.lock()()
	d, ok := r.s.st.docs[id]
	if !ok || d.Status != model.StatusVerified {
		return repository.ErrStaleState
	}
	d.DeliveredAt = &at
	r.s.st.docs[id] = d
	return nil
}

func (r documents) ExpireStale(_ context.Context, status model.Status, cutoff, at time.Time, limit int) ([]model.Document, error) {
	defer r.s.lock()()
	out := make([]model.Document, 0)
	for id, d := range r.s.st.docs {
		if limit > 0 && len(out) >= limit {
			break
		}
		if d.Status == status && d.UpdatedAt.Before(cutoff) {
			d.Status = model.StatusExpired
			d.UpdatedAt = at
			r.s.st.docs[id] = d
			out = append(out, d)
		}
	}
	return out, nil
}

type codes struct{ s *Store }

func (r codes) Create(_ context.Context, code *model.OneTimeCode) error {
	defer r.s.lock()()
	r.s.st.codes[code.ID] = *code
	r.s.st.seq++
	r.s.st.order[code.ID] = r.s.st.seq
	return nil
}

func (r codes) FindLatest(_ context.Context, documentID string) (*model.OneTimeCode, error) {
	defer r.s.lock()()
	var (
		latest model.OneTimeCode
		found  bool
	)
	for _, c := range r.s.st.codes {
		if c.DocumentID != documentID {
			continue
		}
		if !found || c.IssuedAt.After(latest.IssuedAt) ||
			(c.IssuedAt.Equal(latest.IssuedAt) && r.s.st.order[c.ID] > r.s.st.order[latest.ID]) {
			latest, found = c, true
		}
	}
	if !found {
		return nil, repository.ErrNotFound
	}
	return &latest, nil
}

func (r codes) Consume(_ context.Context, id string, reason model.ConsumeReason, at time.Time) error {
	defer r.s.lock()()
	c, ok := r.s.st.codes[id]
	if !ok || c.Consumed {
		return repository.ErrStaleState
	}
	c.Consumed = true
	c.ConsumedAt = &at
	c.ConsumeReason = reason
	r.s.st.codes[id] = c
	return nil
}

func (r codes) IncrementAttempts(_ context.Context, id string) (int, error) {
	defer r.s.lock()()
	c, ok := r.s.st.codes[id]
	if !ok || c.Consumed {
		return 0, repository.ErrStaleState
	}
	c.Attempts++
	r.s.st.codes[id] = c
	return c.Attempts, nil
}

func (r codes) InvalidateAll(_ context.Context, documentID string, reason model.ConsumeReason, at time.Time) (int64, error) {
	defer r.s.lock()()
	var n int64
	for id, c := range r.s.st.codes {
		if c.DocumentID == documentID && !c.Consumed {
			c.Consumed = true
			c.ConsumedAt = &at
			c.ConsumeReason = reason
			r.s.st.codes[id] = c
			n++
		}
	}
	return n, nil
}

type centers struct{ s *Store }

func (r centers) Create(_ context.Context, c *model.Center) (*model.Center, error) {
	defer r.s.lock()()
	cp := *c
	r.s.st.centers[cp.ID] = cp
	return &cp, nil
}

func (r centers) FindByID(_ context.Context, id string) (*model.Center, error) {
	defer r.s.lock()()
	c, ok := r.s.st.centers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r centers) FindByOwner(_ context.Context, ownerAccountID string) (*model.Center, error) {
	defer r.s.lock()()
	for _, c := range r.s.st.centers {
		if c.OwnerAccountID == ownerAccountID {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r centers) ListActive(_ context.Context, pq repository.PageQuery) (*repository.PageResult[model.Center], error) {
	defer r.s.lock()()
	all := make([]model.Center, 0)
	for _, c := range r.s.st.centers {
		if c.Active {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].ID < all[j].ID
	})
	return &repository.PageResult[model.Center]{Items: page(all, pq), Total: len(all)}, nil
}

func page[T any](all []T, pq repository.PageQuery) []T {
	if pq.Offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if pq.Limit > 0 && pq.Offset+pq.Limit < end {
		end = pq.Offset + pq.Limit
	}
	return all[pq.Offset:end]
}
