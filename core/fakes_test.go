package core

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// memUserStore is an in-memory UserStore keyed by e-mail.
type memUserStore struct {
	users map[string]*User
	err   error
	calls int
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// memInvoiceStore records every call and keeps rows in a map.
type memInvoiceStore struct {
	mu      sync.Mutex
	rows    map[string]Invoice
	order   []string
	nextID  []string
	failErr error
	calls   int
}

func newMemInvoiceStore() *memInvoiceStore {
	return &memInvoiceStore{rows: map[string]Invoice{}}
}

func (s *memInvoiceStore) Insert(_ context.Context, inv Invoice) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failErr != nil {
		return "", s.failErr
	}
	id := "7f6b2e1c-8d6c-4f52-9c57-0d7d3c6b2a10"
	if len(s.nextID) > 0 {
		id, s.nextID = s.nextID[0], s.nextID[1:]
	}
	inv.ID = id
	s.rows[id] = inv
	s.order = append(s.order, id)
	return id, nil
}

func (s *memInvoiceStore) InsertIfAbsent(_ context.Context, inv Invoice) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failErr != nil {
		return false, s.failErr
	}
	if _, ok := s.rows[inv.ID]; ok {
		return false, nil
	}
	s.rows[inv.ID] = inv
	s.order = append(s.order, inv.ID)
	return true, nil
}

func (s *memInvoiceStore) Update(_ context.Context, inv Invoice) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failErr != nil {
		return 0, s.failErr
	}
	old, ok := s.rows[inv.ID]
	if !ok {
		return 0, nil
	}
	inv.Date = old.Date
	s.rows[inv.ID] = inv
	return 1, nil
}

func (s *memInvoiceStore) Delete(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failErr != nil {
		return 0, s.failErr
	}
	if _, ok := s.rows[id]; !ok {
		return 0, nil
	}
	delete(s.rows, id)
	return 1, nil
}

func (s *memInvoiceStore) Get(_ context.Context, id string) (*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.rows[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	return &inv, nil
}

// List ignores query and returns rows in insertion order.
func (s *memInvoiceStore) List(_ context.Context, _ string, page, perPage int) ([]InvoiceListItem, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []InvoiceListItem
	for _, id := range s.order {
		if inv, ok := s.rows[id]; ok {
			all = append(all, InvoiceListItem{Invoice: inv})
		}
	}
	start := (page - 1) * perPage
	if start >= len(all) {
		return []InvoiceListItem{}, len(all), nil
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

type recordingInvalidator struct {
	paths []string
	err   error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, path string) error {
	if r.err != nil {
		return r.err
	}
	r.paths = append(r.paths, path)
	return nil
}

type stubCustomers struct {
	items []Customer
}

func (s stubCustomers) List(context.Context) ([]Customer, error) { return s.items, nil }
