package services

import (
	"errors"
	"testing"

	"github.com/saeid-a/DietChatBack/internal/models"
)

func TestTransitionAccept(t *testing.T) {
	chat := &models.Chat{Status: models.ChatStatusWaiting}

	result, err := Transition(chat, ActionAccept, "d1", "Dr. Sarah")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Status != models.ChatStatusActive {
		t.Errorf("Expected status active, got %s", result.Status)
	}
	if result.Synthesized == nil {
		t.Fatal("Expected a synthesized welcome message")
	}
	if result.Synthesized.Text != "Hello! I'm Dr. Sarah. How can I help you today?" {
		t.Errorf("Unexpected welcome text: %s", result.Synthesized.Text)
	}
	if result.Synthesized.SenderID != "d1" || result.Synthesized.SenderRole != models.RoleDietitian {
		t.Errorf("Expected dietitian sender, got %s/%s", result.Synthesized.SenderID, result.Synthesized.SenderRole)
	}
}

func TestTransitionAcceptFallbackName(t *testing.T) {
	chat := &models.Chat{Status: models.ChatStatusWaiting}

	result, err := Transition(chat, ActionAccept, "d1", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Synthesized.Text != "Hello! I'm your dietitian. How can I help you today?" {
		t.Errorf("Unexpected fallback welcome text: %s", result.Synthesized.Text)
	}
}

func TestTransitionAcceptRejectsNonWaiting(t *testing.T) {
	for _, status := range []string{models.ChatStatusActive, models.ChatStatusClosed} {
		chat := &models.Chat{Status: status}
		_, err := Transition(chat, ActionAccept, "d1", "")
		if !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("Accept from %s: expected ErrInvalidStateTransition, got %v", status, err)
		}
	}
}

func TestTransitionRespond(t *testing.T) {
	chat := &models.Chat{Status: models.ChatStatusWaiting}

	result, err := Transition(chat, ActionRespond, "d1", "")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.Status != models.ChatStatusActive {
		t.Errorf("Expected status active, got %s", result.Status)
	}
	if result.Synthesized != nil {
		t.Error("Respond must not synthesize a welcome message")
	}
}

func TestTransitionRespondRejectsNonWaiting(t *testing.T) {
	chat := &models.Chat{Status: models.ChatStatusActive}
	if _, err := Transition(chat, ActionRespond, "d1", ""); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestTransitionClose(t *testing.T) {
	for _, status := range []string{models.ChatStatusWaiting, models.ChatStatusActive} {
		chat := &models.Chat{Status: status}
		result, err := Transition(chat, ActionClose, "d1", "")
		if err != nil {
			t.Fatalf("Close from %s: expected no error, got %v", status, err)
		}
		if result.Status != models.ChatStatusClosed {
			t.Errorf("Expected status closed, got %s", result.Status)
		}
		if result.Synthesized == nil || result.Synthesized.Text != "This chat has been closed. Thank you for your consultation!" {
			t.Errorf("Expected closing message, got %+v", result.Synthesized)
		}
	}
}

func TestTransitionCloseIsTerminal(t *testing.T) {
	chat := &models.Chat{Status: models.ChatStatusClosed}
	if _, err := Transition(chat, ActionClose, "d1", ""); !errors.Is(err, ErrChatClosed) {
		t.Errorf("Expected ErrChatClosed, got %v", err)
	}
}

func TestTransitionSend(t *testing.T) {
	cases := []struct {
		status  string
		wantErr error
	}{
		{models.ChatStatusActive, nil},
		{models.ChatStatusWaiting, ErrChatNotActive},
		{models.ChatStatusClosed, ErrChatClosed},
	}

	for _, tc := range cases {
		chat := &models.Chat{Status: tc.status}
		_, err := Transition(chat, ActionSend, "", "")
		if tc.wantErr == nil {
			if err != nil {
				t.Errorf("Send in %s: expected no error, got %v", tc.status, err)
			}
			continue
		}
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("Send in %s: expected %v, got %v", tc.status, tc.wantErr, err)
		}
	}
}

func TestTransitionUnknownAction(t *testing.T) {
	chat := &models.Chat{Status: models.ChatStatusActive}
	if _, err := Transition(chat, ChatAction("archive"), "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
