package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotFound is returned by reads and field updates that target a document
// that does not exist.
var ErrNotFound = errors.New("document not found")

// Document is one stored record. Data holds the raw document fields; DataTo
// decodes them into a typed value.
type Document struct {
	ID   string
	Path string
	Data map[string]any
}

func (d Document) DataTo(v any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Filter restricts a query. Supported operators are "==" and "in"
// (Value must be a slice for "in").
type Filter struct {
	Field string
	Op    string
	Value any
}

// Order sorts query results by a document field.
type Order struct {
	Field string
	Desc  bool
}

type Unsubscribe func()

// WriteBatch groups updates so they land as one logical unit. Commit is
// all-or-nothing where the backing store supports it.
type WriteBatch interface {
	Update(path string, fields map[string]any)
	Set(path string, data map[string]any)
	Commit(ctx context.Context) error
}

// Store is the narrow surface the chat engine requires from the document
// database. Collections are slash-separated paths; nested collections such as
// "chats/<id>/messages" are legal. Field updates accept dotted field paths
// ("unreadCount.client") and the Increment/ArrayUnion/ServerTimestamp
// sentinels.
//
// Query subscriptions deliver a full ordered snapshot on subscribe and after
// every matching change. Deliveries are not guaranteed to arrive in write
// order; callers re-sort and resolve staleness themselves.
type Store interface {
	CreateDocument(ctx context.Context, collection string, data map[string]any) (string, error)
	GetDocument(ctx context.Context, path string) (Document, error)
	SetDocument(ctx context.Context, path string, data map[string]any) error
	UpdateDocument(ctx context.Context, path string, fields map[string]any) error
	QueryDocuments(ctx context.Context, collection string, filters []Filter, order []Order) ([]Document, error)
	SubscribeQuery(collection string, filters []Filter, order []Order, fn func([]Document)) (Unsubscribe, error)
	SubscribeDocument(path string, fn func(Document)) (Unsubscribe, error)
	Batch() WriteBatch
}

// DocID returns the final segment of a document path.
func DocID(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ParentCollection returns the collection a document path belongs to.
func ParentCollection(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}
