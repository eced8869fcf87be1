package services

import (
	"context"
	"log"
	"sync"

	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/repository"
	"github.com/saeid-a/DietChatBack/internal/store"
)

// ChatSummary pairs a chat with the counterpart's profile for roster views.
type ChatSummary struct {
	models.Chat
	Partner *models.User `json:"partner,omitempty"`
}

// session holds the subscription state shared by both role controllers.
// Subscriptions are owned handles: attach opens them, Close (or a later
// attach) releases them. The generation counter fences callbacks and
// reconciliation writes that race with teardown; a callback observing a
// stale generation drops its result instead of touching discarded state.
type session struct {
	st       store.Store
	chats    *repository.ChatRepository
	messages *repository.MessageRepository
	indexes  *repository.ChatIndexRepository
	users    *repository.UserRepository

	mu         sync.Mutex
	generation int
	unsubs     []store.Unsubscribe
	chatID     string
	lastChat   *models.Chat
}

func (s *session) attach(ctx context.Context, viewerRole, chatID string, onChat func(models.Chat), onMessages func([]models.Message)) error {
	if chatID == "" {
		return ErrInvalidInput
	}
	if _, err := s.chats.Get(ctx, chatID); err != nil {
		if repository.IsNotFound(err) {
			return ErrChatNotFound
		}
		return err
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	previous := s.unsubs
	s.unsubs = nil
	s.chatID = chatID
	s.lastChat = nil
	s.mu.Unlock()
	for _, unsub := range previous {
		unsub()
	}

	unsubChat, err := s.chats.SubscribeChat(chatID, func(chat models.Chat) {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return
		}
		if s.lastChat != nil && chat.UpdatedAt.Before(s.lastChat.UpdatedAt) {
			// Older snapshot arriving late; a newer update already applied.
			s.mu.Unlock()
			return
		}
		snapshot := chat
		s.lastChat = &snapshot
		s.mu.Unlock()

		if onChat != nil {
			onChat(chat)
		}
	})
	if err != nil {
		return err
	}
	if !s.addUnsub(gen, unsubChat) {
		return nil
	}

	unsubMessages, err := s.messages.Subscribe(chatID, func(batch []models.Message) {
		SortMessages(batch)

		s.mu.Lock()
		live := s.generation == gen
		s.mu.Unlock()
		if !live {
			return
		}

		if onMessages != nil {
			onMessages(batch)
		}

		rec := ReconcileRead(batch, viewerRole)
		if len(rec.MessageIDs) == 0 {
			return
		}

		// Teardown may have happened while the batch was handled; a
		// discarded session must not issue new writes.
		s.mu.Lock()
		live = s.generation == gen
		s.mu.Unlock()
		if !live {
			return
		}
		if err := commitReconciliation(context.Background(), s.st, s.chats, s.messages, chatID, viewerRole, rec); err != nil {
			log.Printf("chat %s: reconcile read: %v", chatID, err)
		}
	})
	if err != nil {
		unsubChat()
		return err
	}
	s.addUnsub(gen, unsubMessages)
	return nil
}

// addUnsub registers a live subscription handle, or releases it immediately
// when the session moved on while it was being opened.
func (s *session) addUnsub(gen int, unsub store.Unsubscribe) bool {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		unsub()
		return false
	}
	s.unsubs = append(s.unsubs, unsub)
	s.mu.Unlock()
	return true
}

// Close tears down every subscription the session owns. In-flight callbacks
// finish but their results are dropped by the generation fence.
func (s *session) Close() {
	s.mu.Lock()
	s.generation++
	unsubs := s.unsubs
	s.unsubs = nil
	s.chatID = ""
	s.lastChat = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// loadChat prefers the freshest subscribed snapshot and falls back to a
// one-shot read for chats the session is not attached to.
func (s *session) loadChat(ctx context.Context, chatID string) (*models.Chat, error) {
	s.mu.Lock()
	if s.chatID == chatID && s.lastChat != nil {
		chat := *s.lastChat
		s.mu.Unlock()
		return &chat, nil
	}
	s.mu.Unlock()

	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return chat, nil
}

// listMessages is the one-shot read of a chat's ordered message stream,
// restricted to the chat's own participants.
func (s *session) listMessages(ctx context.Context, viewerRole, participantID, chatID string) ([]models.Message, error) {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	owner := chat.ClientID
	if viewerRole == models.RoleDietitian {
		owner = chat.DietitianID
	}
	if owner != participantID {
		return nil, ErrForbidden
	}

	messages, err := s.messages.List(ctx, chatID)
	if err != nil {
		return nil, err
	}
	SortMessages(messages)
	return messages, nil
}

func (s *session) listChats(ctx context.Context, viewerRole, participantID string) ([]ChatSummary, error) {
	chats, err := s.chats.ListForParticipant(ctx, viewerRole, participantID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		partnerID := chat.DietitianID
		if viewerRole == models.RoleDietitian {
			partnerID = chat.ClientID
		}
		summary := ChatSummary{Chat: chat}
		partner, err := s.users.GetByID(ctx, partnerID)
		if err == nil {
			summary.Partner = partner
		} else if !repository.IsNotFound(err) {
			log.Printf("chat %s: load partner %s: %v", chat.ID, partnerID, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
