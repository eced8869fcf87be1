package services

import (
	"context"
	"strings"

	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/repository"
	"github.com/saeid-a/DietChatBack/internal/store"
)

// DietitianSession is the dietitian-side chat controller.
type DietitianSession struct {
	session
	plans       *repository.PlanRepository
	dietitianID string
}

func NewDietitianSession(
	st store.Store,
	chats *repository.ChatRepository,
	messages *repository.MessageRepository,
	indexes *repository.ChatIndexRepository,
	users *repository.UserRepository,
	plans *repository.PlanRepository,
	dietitianID string,
) *DietitianSession {
	return &DietitianSession{
		session: session{
			st:       st,
			chats:    chats,
			messages: messages,
			indexes:  indexes,
			users:    users,
		},
		plans:       plans,
		dietitianID: dietitianID,
	}
}

// OpenInbox subscribes to every chat addressed to this dietitian. The
// callback receives the full set re-ordered by updatedAt descending on every
// change; partitioning into waiting versus active is presentation's job.
// The dietitian index document is bootstrapped if absent.
func (s *DietitianSession) OpenInbox(ctx context.Context, fn func([]models.Chat)) (store.Unsubscribe, error) {
	if err := s.indexes.Ensure(ctx, models.RoleDietitian, s.dietitianID); err != nil {
		return nil, err
	}
	return s.chats.SubscribeForParticipant(models.RoleDietitian, s.dietitianID, func(chats []models.Chat) {
		sortChatsByUpdatedAt(chats)
		fn(chats)
	})
}

// ListInbox is the one-shot variant of OpenInbox, with client profiles
// resolved for display.
func (s *DietitianSession) ListInbox(ctx context.Context) ([]ChatSummary, error) {
	return s.listChats(ctx, models.RoleDietitian, s.dietitianID)
}

// OpenOrCreateChat reuses any open chat with the client, otherwise creates
// one that is active immediately: a dietitian reaching out never waits on
// themselves.
func (s *DietitianSession) OpenOrCreateChat(ctx context.Context, clientID string) (string, error) {
	if clientID == "" || clientID == s.dietitianID {
		return "", ErrInvalidInput
	}

	existing, err := s.chats.FindOpen(ctx, clientID, s.dietitianID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	chatID, err := s.chats.Create(ctx, repository.CreateChatInput{
		ClientID:    clientID,
		DietitianID: s.dietitianID,
		Status:      models.ChatStatusActive,
	})
	if err != nil {
		return "", err
	}

	if err := s.indexes.AddChat(ctx, models.RoleClient, clientID, chatID, false); err != nil {
		return "", err
	}
	if err := s.indexes.AddChat(ctx, models.RoleDietitian, s.dietitianID, chatID, false); err != nil {
		return "", err
	}
	return chatID, nil
}

// Attach opens the live subscriptions for one chat. Client messages are
// reconciled to read while attached.
func (s *DietitianSession) Attach(ctx context.Context, chatID string, onChat func(models.Chat), onMessages func([]models.Message)) error {
	return s.attach(ctx, models.RoleDietitian, chatID, onChat, onMessages)
}

// AcceptChat takes a waiting chat: the status flips to active and the
// synthesized welcome message is appended on the dietitian's behalf.
func (s *DietitianSession) AcceptChat(ctx context.Context, chatID string) error {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.DietitianID != s.dietitianID {
		return ErrForbidden
	}

	result, err := Transition(chat, ActionAccept, s.dietitianID, s.displayName(ctx))
	if err != nil {
		return err
	}

	// Roster repair for chats created outside the open-or-create flows.
	if err := s.indexes.AddChat(ctx, models.RoleDietitian, s.dietitianID, chatID, false); err != nil {
		return err
	}
	if err := s.chats.SetStatus(ctx, chatID, result.Status); err != nil {
		return err
	}
	if _, err := s.messages.Append(ctx, chatID, repository.AppendMessageInput{
		Text:       result.Synthesized.Text,
		SenderID:   result.Synthesized.SenderID,
		SenderRole: result.Synthesized.SenderRole,
	}); err != nil {
		return err
	}
	return s.chats.TouchOnSend(ctx, chatID, result.Synthesized.Text, models.RoleClient, "")
}

// CloseChat ends a waiting or active chat. Closed is terminal: further sends
// from either side are rejected, and renewed contact needs a new chat.
func (s *DietitianSession) CloseChat(ctx context.Context, chatID string) error {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.DietitianID != s.dietitianID {
		return ErrForbidden
	}

	result, err := Transition(chat, ActionClose, s.dietitianID, "")
	if err != nil {
		return err
	}

	if err := s.indexes.AddChat(ctx, models.RoleDietitian, s.dietitianID, chatID, false); err != nil {
		return err
	}
	if err := s.chats.SetStatus(ctx, chatID, result.Status); err != nil {
		return err
	}
	if _, err := s.messages.Append(ctx, chatID, repository.AppendMessageInput{
		Text:       result.Synthesized.Text,
		SenderID:   result.Synthesized.SenderID,
		SenderRole: result.Synthesized.SenderRole,
	}); err != nil {
		return err
	}
	return s.chats.TouchOnSend(ctx, chatID, result.Synthesized.Text, models.RoleClient, "")
}

// SendMessage appends a dietitian message. Sending into a waiting chat is
// the implicit accept: the same write that stores the message activates the
// chat, so a waiting chat always becomes active the moment the dietitian
// engages.
func (s *DietitianSession) SendMessage(ctx context.Context, chatID, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrInvalidInput
	}

	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.DietitianID != s.dietitianID {
		return ErrForbidden
	}

	action := ActionSend
	if chat.Status == models.ChatStatusWaiting {
		action = ActionRespond
	}
	result, err := Transition(chat, action, s.dietitianID, "")
	if err != nil {
		return err
	}

	statusChange := ""
	if action == ActionRespond {
		statusChange = result.Status
	}

	if _, err := s.messages.Append(ctx, chatID, repository.AppendMessageInput{
		Text:       trimmed,
		SenderID:   s.dietitianID,
		SenderRole: models.RoleDietitian,
	}); err != nil {
		return err
	}
	return s.chats.TouchOnSend(ctx, chatID, trimmed, models.RoleClient, statusChange)
}

// SuggestPlan sends a plan_suggestion message embedding a snapshot of the
// plan as it exists right now; later edits of the stored plan never reach
// the suggestion.
func (s *DietitianSession) SuggestPlan(ctx context.Context, chatID, planID string) error {
	chat, err := s.loadChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.DietitianID != s.dietitianID {
		return ErrForbidden
	}
	if _, err := Transition(chat, ActionSend, "", ""); err != nil {
		return err
	}

	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrPlanNotFound
		}
		return err
	}

	if _, err := s.messages.Append(ctx, chatID, repository.AppendMessageInput{
		Text:        renderPlanSuggestion(plan),
		SenderID:    s.dietitianID,
		SenderRole:  models.RoleDietitian,
		MessageKind: models.MessageKindPlanSuggestion,
		Plan:        plan,
	}); err != nil {
		return err
	}
	return s.chats.TouchOnSend(ctx, chatID, planSummaryText(plan), models.RoleClient, "")
}

// ListMessages returns the chat's messages ordered by sentAt ascending.
func (s *DietitianSession) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	return s.listMessages(ctx, models.RoleDietitian, s.dietitianID, chatID)
}

// ListPlans returns the plans this dietitian can suggest.
func (s *DietitianSession) ListPlans(ctx context.Context) ([]models.Plan, error) {
	return s.plans.ListAvailable(ctx, s.dietitianID)
}

func (s *DietitianSession) displayName(ctx context.Context) string {
	user, err := s.users.GetByID(ctx, s.dietitianID)
	if err != nil {
		return ""
	}
	return user.DisplayName
}
