package services

import (
	"fmt"

	"github.com/saeid-a/DietChatBack/internal/models"
)

// ChatAction is one of the lifecycle moves a participant can make on a chat.
type ChatAction string

const (
	// ActionAccept is the dietitian explicitly taking a waiting chat.
	ActionAccept ChatAction = "accept"
	// ActionRespond is the dietitian sending into a waiting chat, which
	// activates it implicitly without a synthesized welcome.
	ActionRespond ChatAction = "respond"
	// ActionClose ends a waiting or active chat; closed is terminal.
	ActionClose ChatAction = "close"
	// ActionSend is a plain message send by either party.
	ActionSend ChatAction = "send"
)

const closingMessageText = "This chat has been closed. Thank you for your consultation!"

// TransitionResult carries the status produced by a legal action and, for
// accept and close, the message synthesized alongside it. The synthesized
// message has no id or timestamp yet; those are assigned on append.
type TransitionResult struct {
	Status      string
	Synthesized *models.Message
}

// Transition applies the chat lifecycle rules: waiting -> active -> closed,
// no reopening. It is pure; persisting the result is the caller's job.
func Transition(chat *models.Chat, action ChatAction, dietitianID, dietitianName string) (TransitionResult, error) {
	switch action {
	case ActionAccept:
		if chat.Status != models.ChatStatusWaiting {
			return TransitionResult{}, fmt.Errorf("accept from %s: %w", chat.Status, ErrInvalidStateTransition)
		}
		return TransitionResult{
			Status:      models.ChatStatusActive,
			Synthesized: synthesizedMessage(welcomeMessageText(dietitianName), dietitianID),
		}, nil

	case ActionRespond:
		if chat.Status != models.ChatStatusWaiting {
			return TransitionResult{}, fmt.Errorf("respond from %s: %w", chat.Status, ErrInvalidStateTransition)
		}
		return TransitionResult{Status: models.ChatStatusActive}, nil

	case ActionClose:
		if !chat.IsOpen() {
			return TransitionResult{}, ErrChatClosed
		}
		return TransitionResult{
			Status:      models.ChatStatusClosed,
			Synthesized: synthesizedMessage(closingMessageText, dietitianID),
		}, nil

	case ActionSend:
		switch chat.Status {
		case models.ChatStatusActive:
			return TransitionResult{Status: models.ChatStatusActive}, nil
		case models.ChatStatusClosed:
			return TransitionResult{}, ErrChatClosed
		default:
			return TransitionResult{}, ErrChatNotActive
		}

	default:
		return TransitionResult{}, fmt.Errorf("unknown action %q: %w", action, ErrInvalidInput)
	}
}

func welcomeMessageText(dietitianName string) string {
	if dietitianName == "" {
		dietitianName = "your dietitian"
	}
	return fmt.Sprintf("Hello! I'm %s. How can I help you today?", dietitianName)
}

func synthesizedMessage(text, dietitianID string) *models.Message {
	return &models.Message{
		Text:       text,
		SenderID:   dietitianID,
		SenderRole: models.RoleDietitian,
	}
}
