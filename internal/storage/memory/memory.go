// Package memory provides an in-memory ledger.PaymentStore, used as a
// fallback backend and by handler tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"paytrack/internal/core"
	"paytrack/internal/ledger"
)

var _ ledger.PaymentStore = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]core.Payment
}

func New() *Store {
	return &Store{nextID: 1, items: make(map[int64]core.Payment)}
}

func (s *Store) Create(_ context.Context, p core.Payment) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID
	s.nextID++
	s.items[p.ID] = p
	return p.ID, nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok {
		return core.Payment{}, ledger.ErrNotFound
	}
	return p, nil
}

func (s *Store) Update(_ context.Context, p core.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[p.ID]; !ok {
		return ledger.ErrNotFound
	}
	s.items[p.ID] = p
	return nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *Store) List(_ context.Context) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(), nil
}

func (s *Store) ForEach(_ context.Context, fn func(core.Payment) error) error {
	s.mu.Lock()
	items := s.sorted()
	s.mu.Unlock()

	for _, p := range items {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// sorted returns payments ordered by date descending, then id descending.
// Callers must hold s.mu.
func (s *Store) sorted() []core.Payment {
	out := make([]core.Payment, 0, len(s.items))
	for _, p := range s.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
