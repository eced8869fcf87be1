package services

import (
	"context"

	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/repository"
)

// PresenceService persists and reads the dietitian's self-reported
// availability flag. It is a plain persist-and-echo: changing availability
// never touches existing chats, and offline is only ever set explicitly (no
// heartbeat or expiry).
type PresenceService struct {
	indexes *repository.ChatIndexRepository
}

func NewPresenceService(indexes *repository.ChatIndexRepository) *PresenceService {
	return &PresenceService{indexes: indexes}
}

func (p *PresenceService) SetAvailability(ctx context.Context, dietitianID, status string) error {
	if dietitianID == "" || !models.ValidAvailability(status) {
		return ErrInvalidInput
	}
	return p.indexes.SetAvailability(ctx, dietitianID, status)
}

func (p *PresenceService) GetAvailability(ctx context.Context, dietitianID string) (string, error) {
	if dietitianID == "" {
		return "", ErrInvalidInput
	}
	return p.indexes.GetAvailability(ctx, dietitianID)
}
