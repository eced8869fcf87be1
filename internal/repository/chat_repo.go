package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/store"
)

const chatsCollection = "chats"

type ChatRepository struct {
	store store.Store
}

func NewChatRepository(st store.Store) *ChatRepository {
	return &ChatRepository{store: st}
}

// CreateInput carries the initial chat document fields. Timestamps are
// always server-assigned.
type CreateChatInput struct {
	ClientID        string
	DietitianID     string
	Status          string
	LastMessageText string
	UnreadCount     models.UnreadCount
}

func (r *ChatRepository) Create(ctx context.Context, input CreateChatInput) (string, error) {
	return r.store.CreateDocument(ctx, chatsCollection, map[string]any{
		"clientId":        input.ClientID,
		"dietitianId":     input.DietitianID,
		"status":          input.Status,
		"lastMessageText": input.LastMessageText,
		"unreadCount": map[string]any{
			"client":    input.UnreadCount.Client,
			"dietitian": input.UnreadCount.Dietitian,
		},
		"createdAt": store.ServerTimestamp(),
		"updatedAt": store.ServerTimestamp(),
	})
}

func (r *ChatRepository) Get(ctx context.Context, chatID string) (*models.Chat, error) {
	doc, err := r.store.GetDocument(ctx, ChatPath(chatID))
	if err != nil {
		return nil, err
	}
	return decodeChat(doc)
}

// FindOpen returns the open (waiting or active) chat for a client/dietitian
// pair, or nil when none exists. At most one such chat should exist; when a
// race has produced duplicates the oldest one wins so both parties converge
// on the same thread.
func (r *ChatRepository) FindOpen(ctx context.Context, clientID, dietitianID string) (*models.Chat, error) {
	docs, err := r.store.QueryDocuments(ctx, chatsCollection,
		[]store.Filter{
			{Field: "clientId", Op: "==", Value: clientID},
			{Field: "dietitianId", Op: "==", Value: dietitianID},
			{Field: "status", Op: "in", Value: []string{models.ChatStatusWaiting, models.ChatStatusActive}},
		},
		[]store.Order{{Field: "createdAt"}},
	)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeChat(docs[0])
}

// ListForParticipant returns the participant's chats, most recently updated
// first.
func (r *ChatRepository) ListForParticipant(ctx context.Context, role, participantID string) ([]models.Chat, error) {
	docs, err := r.store.QueryDocuments(ctx, chatsCollection,
		participantFilters(role, participantID),
		[]store.Order{{Field: "updatedAt", Desc: true}},
	)
	if err != nil {
		return nil, err
	}
	return decodeChats(docs)
}

// SubscribeForParticipant opens a live roster subscription. The callback
// receives the freshly ordered full set on every change.
func (r *ChatRepository) SubscribeForParticipant(role, participantID string, fn func([]models.Chat)) (store.Unsubscribe, error) {
	return r.store.SubscribeQuery(chatsCollection,
		participantFilters(role, participantID),
		[]store.Order{{Field: "updatedAt", Desc: true}},
		func(docs []store.Document) {
			chats, err := decodeChats(docs)
			if err != nil {
				return
			}
			fn(chats)
		},
	)
}

// SubscribeChat opens a live subscription on one chat document.
func (r *ChatRepository) SubscribeChat(chatID string, fn func(models.Chat)) (store.Unsubscribe, error) {
	return r.store.SubscribeDocument(ChatPath(chatID), func(doc store.Document) {
		chat, err := decodeChat(doc)
		if err != nil {
			return
		}
		fn(*chat)
	})
}

// TouchOnSend refreshes the chat metadata after a message append: last
// message text, updatedAt, and an atomic bump of the recipient's unread
// counter. A non-empty status also moves the chat (the dietitian responding
// to a waiting chat activates it in the same write).
//
// This write is intentionally overwrite-style for lastMessageText/updatedAt
// so a previously missed update self-heals on the next send; only the unread
// counter is increment-based and may drift under partial failure.
func (r *ChatRepository) TouchOnSend(ctx context.Context, chatID, lastMessageText, recipientRole, status string) error {
	fields := map[string]any{
		"lastMessageText": lastMessageText,
		"updatedAt":       store.ServerTimestamp(),
		"unreadCount." + recipientRole: store.Increment(1),
	}
	if status != "" {
		fields["status"] = status
	}
	return r.store.UpdateDocument(ctx, ChatPath(chatID), fields)
}

func (r *ChatRepository) SetStatus(ctx context.Context, chatID, status string) error {
	return r.store.UpdateDocument(ctx, ChatPath(chatID), map[string]any{
		"status":    status,
		"updatedAt": store.ServerTimestamp(),
	})
}

// ResetUnread stages an absolute reset of one role's unread counter onto a
// write batch, so it commits together with the read flips it accounts for.
func (r *ChatRepository) ResetUnread(batch store.WriteBatch, chatID, role string) {
	batch.Update(ChatPath(chatID), map[string]any{
		"unreadCount." + role: 0,
	})
}

func ChatPath(chatID string) string {
	return chatsCollection + "/" + chatID
}

func participantFilters(role, participantID string) []store.Filter {
	field := "clientId"
	if role == models.RoleDietitian {
		field = "dietitianId"
	}
	return []store.Filter{{Field: field, Op: "==", Value: participantID}}
}

func decodeChat(doc store.Document) (*models.Chat, error) {
	var chat models.Chat
	if err := doc.DataTo(&chat); err != nil {
		return nil, fmt.Errorf("decode chat %s: %w", doc.ID, err)
	}
	chat.ID = doc.ID
	return &chat, nil
}

func decodeChats(docs []store.Document) ([]models.Chat, error) {
	chats := make([]models.Chat, 0, len(docs))
	for _, doc := range docs {
		chat, err := decodeChat(doc)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *chat)
	}
	return chats, nil
}

// IsNotFound reports whether err is the store's missing-document error.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
