package repository

import (
	"context"
	"errors"

	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/store"
)

const (
	userChatsCollection      = "userChats"
	dietitianChatsCollection = "dietitianChats"
)

// ChatIndexRepository maintains the per-user denormalized chat rosters. The
// index is a cache of the chats collection: every write is an idempotent
// upsert so a missing document repairs itself instead of failing the caller.
type ChatIndexRepository struct {
	store store.Store
}

func NewChatIndexRepository(st store.Store) *ChatIndexRepository {
	return &ChatIndexRepository{store: st}
}

// AddChat appends a chat id to the participant's roster. bumpUnread also
// increments the dietitian's aggregate unread counter (used when a client
// opens a new chat). A missing index document is created, not an error.
func (r *ChatIndexRepository) AddChat(ctx context.Context, role, participantID, chatID string, bumpUnread bool) error {
	fields := map[string]any{
		"activeChatIds": store.ArrayUnion(chatID),
	}
	if bumpUnread {
		fields["unreadCount"] = store.Increment(1)
	}

	err := r.store.UpdateDocument(ctx, indexPath(role, participantID), fields)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	unread := 0
	if bumpUnread {
		unread = 1
	}
	return r.store.SetDocument(ctx, indexPath(role, participantID), initialIndex(role, chatID, unread))
}

// Ensure creates the participant's index document with defaults when absent.
func (r *ChatIndexRepository) Ensure(ctx context.Context, role, participantID string) error {
	_, err := r.store.GetDocument(ctx, indexPath(role, participantID))
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return r.store.SetDocument(ctx, indexPath(role, participantID), initialIndex(role, "", 0))
}

func (r *ChatIndexRepository) Get(ctx context.Context, role, participantID string) (*models.ChatIndex, error) {
	doc, err := r.store.GetDocument(ctx, indexPath(role, participantID))
	if err != nil {
		return nil, err
	}
	var index models.ChatIndex
	if err := doc.DataTo(&index); err != nil {
		return nil, err
	}
	return &index, nil
}

// SetAvailability persists the dietitian's tri-state presence flag. The flag
// lives on the dietitian index document, so a missing document is upserted
// the same way roster writes are.
func (r *ChatIndexRepository) SetAvailability(ctx context.Context, dietitianID, status string) error {
	path := indexPath(models.RoleDietitian, dietitianID)
	err := r.store.UpdateDocument(ctx, path, map[string]any{
		"availability": status,
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	data := initialIndex(models.RoleDietitian, "", 0)
	data["availability"] = status
	return r.store.SetDocument(ctx, path, data)
}

// GetAvailability reflects the last written value; a missing document reads
// as online, matching the bootstrap default.
func (r *ChatIndexRepository) GetAvailability(ctx context.Context, dietitianID string) (string, error) {
	index, err := r.Get(ctx, models.RoleDietitian, dietitianID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.AvailabilityOnline, nil
		}
		return "", err
	}
	if index.Availability == "" {
		return models.AvailabilityOnline, nil
	}
	return index.Availability, nil
}

func indexPath(role, participantID string) string {
	if role == models.RoleDietitian {
		return dietitianChatsCollection + "/" + participantID
	}
	return userChatsCollection + "/" + participantID
}

func initialIndex(role, chatID string, unread int) map[string]any {
	ids := []any{}
	if chatID != "" {
		ids = append(ids, chatID)
	}
	data := map[string]any{
		"activeChatIds": ids,
		"unreadCount":   unread,
	}
	if role == models.RoleDietitian {
		data["availability"] = models.AvailabilityOnline
	}
	return data
}
