// Package memstore is an in-process implementation of the document store
// used by tests and the memory server mode. Subscriptions are delivered
// synchronously after each committed write, outside the store lock, so
// callbacks may freely write back into the store.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saeid-a/DietChatBack/internal/store"
)

type Store struct {
	mu     sync.Mutex
	docs   map[string]map[string]any
	subs   map[int]*subscription
	nextID int
}

type subscription struct {
	id         int
	collection string
	filters    []store.Filter
	order      []store.Order
	queryFn    func([]store.Document)
	docPath    string
	docFn      func(store.Document)
}

func New() *Store {
	return &Store{
		docs: make(map[string]map[string]any),
		subs: make(map[int]*subscription),
	}
}

func (s *Store) CreateDocument(_ context.Context, collection string, data map[string]any) (string, error) {
	resolved, err := store.ResolveData(data, time.Now().UTC())
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	path := collection + "/" + id

	s.mu.Lock()
	s.docs[path] = resolved
	pending := s.pendingDeliveries(path)
	s.mu.Unlock()

	s.deliver(pending)
	return id, nil
}

func (s *Store) GetDocument(_ context.Context, path string) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.docs[path]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return s.snapshot(path, data), nil
}

func (s *Store) SetDocument(_ context.Context, path string, data map[string]any) error {
	resolved, err := store.ResolveData(data, time.Now().UTC())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.docs[path] = resolved
	pending := s.pendingDeliveries(path)
	s.mu.Unlock()

	s.deliver(pending)
	return nil
}

// UpdateDocument applies the fields to a staged copy and swaps it in only
// when every field applied, so a failed update leaves the document untouched.
func (s *Store) UpdateDocument(_ context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	data, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	updated := deepCopy(data)
	if err := store.ApplyUpdates(updated, fields, time.Now().UTC()); err != nil {
		s.mu.Unlock()
		return err
	}
	s.docs[path] = updated
	pending := s.pendingDeliveries(path)
	s.mu.Unlock()

	s.deliver(pending)
	return nil
}

func (s *Store) QueryDocuments(_ context.Context, collection string, filters []store.Filter, order []store.Order) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runQuery(collection, filters, order), nil
}

func (s *Store) SubscribeQuery(collection string, filters []store.Filter, order []store.Order, fn func([]store.Document)) (store.Unsubscribe, error) {
	s.mu.Lock()
	s.nextID++
	sub := &subscription{
		id:         s.nextID,
		collection: collection,
		filters:    filters,
		order:      order,
		queryFn:    fn,
	}
	s.subs[sub.id] = sub
	initial := s.runQuery(collection, filters, order)
	s.mu.Unlock()

	fn(initial)
	return s.unsubscribeFn(sub.id), nil
}

func (s *Store) SubscribeDocument(path string, fn func(store.Document)) (store.Unsubscribe, error) {
	s.mu.Lock()
	s.nextID++
	sub := &subscription{
		id:      s.nextID,
		docPath: path,
		docFn:   fn,
	}
	s.subs[sub.id] = sub
	data, ok := s.docs[path]
	var initial store.Document
	if ok {
		initial = s.snapshot(path, data)
	}
	s.mu.Unlock()

	if ok {
		fn(initial)
	}
	return s.unsubscribeFn(sub.id), nil
}

func (s *Store) Batch() store.WriteBatch {
	return &writeBatch{store: s}
}

func (s *Store) unsubscribeFn(id int) store.Unsubscribe {
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// runQuery and snapshot require s.mu held.
func (s *Store) runQuery(collection string, filters []store.Filter, order []store.Order) []store.Document {
	prefix := collection + "/"
	docs := make([]store.Document, 0)
	for path, data := range s.docs {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if strings.Contains(path[len(prefix):], "/") {
			continue
		}
		if !store.MatchesFilters(data, filters) {
			continue
		}
		docs = append(docs, s.snapshot(path, data))
	}
	store.SortDocuments(docs, order)
	return docs
}

func (s *Store) snapshot(path string, data map[string]any) store.Document {
	return store.Document{
		ID:   store.DocID(path),
		Path: path,
		Data: deepCopy(data),
	}
}

type delivery struct {
	queryFn func([]store.Document)
	docs    []store.Document
	docFn   func(store.Document)
	doc     store.Document
}

// pendingDeliveries requires s.mu held. It snapshots every subscription
// affected by a change to path so callbacks run without the lock.
func (s *Store) pendingDeliveries(paths ...string) []delivery {
	var out []delivery
	for _, sub := range s.subs {
		if sub.queryFn != nil {
			hit := false
			for _, path := range paths {
				if store.ParentCollection(path) == sub.collection {
					hit = true
					break
				}
			}
			if hit {
				out = append(out, delivery{
					queryFn: sub.queryFn,
					docs:    s.runQuery(sub.collection, sub.filters, sub.order),
				})
			}
			continue
		}
		for _, path := range paths {
			if path == sub.docPath {
				if data, ok := s.docs[path]; ok {
					out = append(out, delivery{docFn: sub.docFn, doc: s.snapshot(path, data)})
				}
				break
			}
		}
	}
	return out
}

func (s *Store) deliver(pending []delivery) {
	for _, d := range pending {
		if d.queryFn != nil {
			d.queryFn(d.docs)
		} else {
			d.docFn(d.doc)
		}
	}
}

type batchOp struct {
	set    bool
	path   string
	fields map[string]any
}

type writeBatch struct {
	store *Store
	ops   []batchOp
}

func (b *writeBatch) Update(path string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{path: path, fields: fields})
}

func (b *writeBatch) Set(path string, data map[string]any) {
	b.ops = append(b.ops, batchOp{set: true, path: path, fields: data})
}

// Commit applies all batched writes under one lock acquisition. Staged
// copies are swapped in only once every op has succeeded.
func (b *writeBatch) Commit(_ context.Context) error {
	now := time.Now().UTC()

	b.store.mu.Lock()
	staged := make(map[string]map[string]any, len(b.ops))
	for _, op := range b.ops {
		if op.set {
			resolved, err := store.ResolveData(op.fields, now)
			if err != nil {
				b.store.mu.Unlock()
				return err
			}
			staged[op.path] = resolved
			continue
		}

		data, ok := staged[op.path]
		if !ok {
			existing, exists := b.store.docs[op.path]
			if !exists {
				b.store.mu.Unlock()
				return store.ErrNotFound
			}
			data = deepCopy(existing)
		}
		if err := store.ApplyUpdates(data, op.fields, now); err != nil {
			b.store.mu.Unlock()
			return err
		}
		staged[op.path] = data
	}

	paths := make([]string, 0, len(staged))
	for path, data := range staged {
		b.store.docs[path] = data
		paths = append(paths, path)
	}
	pending := b.store.pendingDeliveries(paths...)
	b.store.mu.Unlock()

	b.store.deliver(pending)
	return nil
}

func deepCopy(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = copyValue(value)
	}
	return out
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return deepCopy(v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = copyValue(elem)
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		return value
	}
}
