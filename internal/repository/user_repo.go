package repository

import (
	"context"
	"fmt"

	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/store"
)

const usersCollection = "users"

type UserRepository struct {
	store store.Store
}

func NewUserRepository(st store.Store) *UserRepository {
	return &UserRepository{store: st}
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	doc, err := r.store.GetDocument(ctx, usersCollection+"/"+userID)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := doc.DataTo(&user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", doc.ID, err)
	}
	user.ID = doc.ID
	return &user, nil
}
