// Package pgstore backs the document store with a single Postgres JSONB
// table. Every committed write fires a pg_notify through a trigger (see
// migrations), and a dedicated listener connection re-runs affected
// subscriptions, so change feeds work across processes. Local writes also
// refresh subscriptions directly rather than waiting on the listener.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/DietChatBack/internal/store"
)

const notifyChannel = "doc_changes"

type Store struct {
	pool   *pgxpool.Pool
	cancel context.CancelFunc

	mu     sync.Mutex
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

func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	listenCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:   pool,
		cancel: cancel,
		subs:   make(map[int]*subscription),
	}
	go s.listen(listenCtx)
	return s, nil
}

// Close stops the notification listener. Writes issued afterwards still
// succeed but no longer fan out to this process's subscriptions.
func (s *Store) Close() {
	s.cancel()
}

func (s *Store) CreateDocument(ctx context.Context, collection string, data map[string]any) (string, error) {
	resolved, err := store.ResolveData(data, time.Now().UTC())
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	path := collection + "/" + id
	_, err = s.pool.Exec(ctx, `
		INSERT INTO documents (path, collection, data)
		VALUES ($1, $2, $3)
	`, path, collection, raw)
	if err != nil {
		return "", err
	}

	s.refreshFor(ctx, path)
	return id, nil
}

func (s *Store) GetDocument(ctx context.Context, path string) (store.Document, error) {
	return getDocument(ctx, s.pool, path)
}

func (s *Store) SetDocument(ctx context.Context, path string, data map[string]any) error {
	if err := setDocument(ctx, s.pool, path, data); err != nil {
		return err
	}
	s.refreshFor(ctx, path)
	return nil
}

func (s *Store) UpdateDocument(ctx context.Context, path string, fields map[string]any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := updateDocument(ctx, tx, path, fields); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.refreshFor(ctx, path)
	return nil
}

func (s *Store) QueryDocuments(ctx context.Context, collection string, filters []store.Filter, order []store.Order) ([]store.Document, error) {
	// Filters and ordering run in Go over the collection's documents; the
	// collection index keeps the fetch bounded. Chat collections stay small
	// per participant, so this mirrors the vendor store's behavior closely
	// enough without a JSONB query builder.
	rows, err := s.pool.Query(ctx, `
		SELECT path, data
		FROM documents
		WHERE collection = $1
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]store.Document, 0)
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		data := make(map[string]any)
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		if !store.MatchesFilters(data, filters) {
			continue
		}
		docs = append(docs, store.Document{ID: store.DocID(path), Path: path, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	store.SortDocuments(docs, order)
	return docs, nil
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
	s.mu.Unlock()

	s.refreshQuery(context.Background(), sub)
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
	s.mu.Unlock()

	s.refreshDoc(context.Background(), sub)
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

func (s *Store) listen(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.listenOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("pgstore listener: %v", err)
			time.Sleep(time.Second)
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		// Payload is "<collection>|<path>", set by the documents trigger.
		parts := strings.SplitN(notification.Payload, "|", 2)
		if len(parts) != 2 {
			continue
		}
		s.refreshFor(ctx, parts[1])
	}
}

// refreshFor re-delivers every subscription affected by a change to path.
func (s *Store) refreshFor(ctx context.Context, paths ...string) {
	s.mu.Lock()
	var query []*subscription
	var docs []*subscription
	for _, sub := range s.subs {
		if sub.queryFn != nil {
			for _, path := range paths {
				if store.ParentCollection(path) == sub.collection {
					query = append(query, sub)
					break
				}
			}
			continue
		}
		for _, path := range paths {
			if path == sub.docPath {
				docs = append(docs, sub)
				break
			}
		}
	}
	s.mu.Unlock()

	for _, sub := range query {
		s.refreshQuery(ctx, sub)
	}
	for _, sub := range docs {
		s.refreshDoc(ctx, sub)
	}
}

func (s *Store) refreshQuery(ctx context.Context, sub *subscription) {
	results, err := s.QueryDocuments(ctx, sub.collection, sub.filters, sub.order)
	if err != nil {
		log.Printf("pgstore refresh query %s: %v", sub.collection, err)
		return
	}
	sub.queryFn(results)
}

func (s *Store) refreshDoc(ctx context.Context, sub *subscription) {
	doc, err := s.GetDocument(ctx, sub.docPath)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("pgstore refresh doc %s: %v", sub.docPath, err)
		}
		return
	}
	sub.docFn(doc)
}

// DBTX covers the subset of pgx shared by pgxpool.Pool and pgx.Tx, so the
// write helpers run standalone or inside a batch transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getDocument(ctx context.Context, q DBTX, path string) (store.Document, error) {
	var raw []byte
	err := q.QueryRow(ctx, `
		SELECT data
		FROM documents
		WHERE path = $1
	`, path).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Document{}, store.ErrNotFound
		}
		return store.Document{}, err
	}

	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return store.Document{}, err
	}
	return store.Document{ID: store.DocID(path), Path: path, Data: data}, nil
}

func setDocument(ctx context.Context, q DBTX, path string, data map[string]any) error {
	resolved, err := store.ResolveData(data, time.Now().UTC())
	if err != nil {
		return err
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO documents (path, collection, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
	`, path, store.ParentCollection(path), raw)
	return err
}

// updateDocument applies a field update inside tx. The row lock taken by
// FOR UPDATE makes sentinel increments atomic across concurrent writers.
func updateDocument(ctx context.Context, tx pgx.Tx, path string, fields map[string]any) error {
	var raw []byte
	err := tx.QueryRow(ctx, `
		SELECT data
		FROM documents
		WHERE path = $1
		FOR UPDATE
	`, path).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return err
	}
	if err := store.ApplyUpdates(data, fields, time.Now().UTC()); err != nil {
		return err
	}
	updated, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE documents
		SET data = $2, updated_at = now()
		WHERE path = $1
	`, path, updated)
	return err
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

func (b *writeBatch) Commit(ctx context.Context) error {
	tx, err := b.store.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, op := range b.ops {
		if op.set {
			if err := setDocument(ctx, tx, op.path, op.fields); err != nil {
				return err
			}
			continue
		}
		if err := updateDocument(ctx, tx, op.path, op.fields); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	paths := make([]string, 0, len(b.ops))
	for _, op := range b.ops {
		paths = append(paths, op.path)
	}
	b.store.refreshFor(ctx, paths...)
	return nil
}
