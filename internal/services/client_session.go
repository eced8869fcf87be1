package services

import (
	"context"
	"strings"

	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/repository"
	"github.com/saeid-a/DietChatBack/internal/store"
)

// ClientSession is the client-side chat controller: one per viewing client.
type ClientSession struct {
	session
	clientID string
}

func NewClientSession(
	st store.Store,
	chats *repository.ChatRepository,
	messages *repository.MessageRepository,
	indexes *repository.ChatIndexRepository,
	users *repository.UserRepository,
	clientID string,
) *ClientSession {
	return &ClientSession{
		session: session{
			st:       st,
			chats:    chats,
			messages: messages,
			indexes:  indexes,
			users:    users,
		},
		clientID: clientID,
	}
}

// OpenOrCreateChat reuses the open chat with the dietitian when one exists;
// otherwise it creates a waiting chat seeded with the first message, updates
// both rosters, and bumps the dietitian's unread counters. The dietitian's
// availability never blocks creation; a busy or offline dietitian simply
// leaves the chat waiting.
//
// Two concurrent opens for the same pair can both observe "no open chat" and
// both create one; without a store-side unique constraint this stays a rare,
// tolerated anomaly. FindOpen resolves it by always picking the oldest.
func (s *ClientSession) OpenOrCreateChat(ctx context.Context, dietitianID, firstMessageText string) (string, error) {
	if dietitianID == "" || dietitianID == s.clientID {
		return "", ErrInvalidInput
	}
	trimmed := strings.TrimSpace(firstMessageText)

	existing, err := s.chats.FindOpen(ctx, s.clientID, dietitianID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		// A waiting chat already carries its first message; only an active
		// chat takes the new text as a regular send.
		if trimmed != "" && existing.Status == models.ChatStatusActive {
			if err := s.SendMessage(ctx, existing.ID, trimmed); err != nil {
				return "", err
			}
		}
		return existing.ID, nil
	}

	if trimmed == "" {
		return "", ErrInvalidInput
	}

	chatID, err := s.chats.Create(ctx, repository.CreateChatInput{
		ClientID:        s.clientID,
		DietitianID:     dietitianID,
		Status:          models.ChatStatusWaiting,
		LastMessageText: trimmed,
		UnreadCount:     models.UnreadCount{Dietitian: 1},
	})
	if err != nil {
		return "", err
	}

	if _, err := s.messages.Append(ctx, chatID, repository.AppendMessageInput{
		Text:       trimmed,
		SenderID:   s.clientID,
		SenderRole: models.RoleClient,
	}); err != nil {
		return "", err
	}

	if err := s.indexes.AddChat(ctx, models.RoleClient, s.clientID, chatID, false); err != nil {
		return "", err
	}
	if err := s.indexes.AddChat(ctx, models.RoleDietitian, dietitianID, chatID, true); err != nil {
		return "", err
	}
	return chatID, nil
}

// Attach opens the live chat and message subscriptions for one chat.
// Dietitian messages delivered while attached are reconciled to read and the
// client's unread counter is reset in the same batch.
func (s *ClientSession) Attach(ctx context.Context, chatID string, onChat func(models.Chat), onMessages func([]models.Message)) error {
	return s.attach(ctx, models.RoleClient, chatID, onChat, onMessages)
}

// SendMessage appends a client message to an active chat. Empty text and
// non-active chats are rejected locally with no store call.
func (s *ClientSession) SendMessage(ctx context.Context, chatID, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrInvalidInput
	}

	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.ClientID != s.clientID {
		return ErrForbidden
	}
	if _, err := Transition(chat, ActionSend, "", ""); err != nil {
		return err
	}

	if _, err := s.messages.Append(ctx, chatID, repository.AppendMessageInput{
		Text:       trimmed,
		SenderID:   s.clientID,
		SenderRole: models.RoleClient,
	}); err != nil {
		return err
	}
	return s.chats.TouchOnSend(ctx, chatID, trimmed, models.RoleDietitian, "")
}

// ListChats returns the client's chats, newest activity first, with the
// dietitian profiles resolved for display.
func (s *ClientSession) ListChats(ctx context.Context) ([]ChatSummary, error) {
	return s.listChats(ctx, models.RoleClient, s.clientID)
}

// ListMessages returns the chat's messages ordered by sentAt ascending.
func (s *ClientSession) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	return s.listMessages(ctx, models.RoleClient, s.clientID, chatID)
}
