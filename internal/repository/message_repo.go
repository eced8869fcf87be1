package repository

import (
	"context"
	"fmt"

	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/store"
)

type MessageRepository struct {
	store store.Store
}

func NewMessageRepository(st store.Store) *MessageRepository {
	return &MessageRepository{store: st}
}

type AppendMessageInput struct {
	Text        string
	SenderID    string
	SenderRole  string
	MessageKind string
	Plan        *models.Plan
}

// Append stores one message under the chat's messages collection. The sent
// timestamp is server-assigned and messages always start unread.
func (r *MessageRepository) Append(ctx context.Context, chatID string, input AppendMessageInput) (string, error) {
	kind := input.MessageKind
	if kind == "" {
		kind = models.MessageKindPlain
	}
	data := map[string]any{
		"text":        input.Text,
		"senderId":    input.SenderID,
		"senderRole":  input.SenderRole,
		"sentAt":      store.ServerTimestamp(),
		"read":        false,
		"messageKind": kind,
	}
	if input.Plan != nil {
		data["plan"] = planSnapshot(input.Plan)
	}
	return r.store.CreateDocument(ctx, MessagesCollection(chatID), data)
}

// List returns the chat's messages ordered by sentAt ascending.
func (r *MessageRepository) List(ctx context.Context, chatID string) ([]models.Message, error) {
	docs, err := r.store.QueryDocuments(ctx, MessagesCollection(chatID), nil,
		[]store.Order{{Field: "sentAt"}})
	if err != nil {
		return nil, err
	}
	return decodeMessages(docs)
}

// Subscribe opens a live subscription on the chat's ordered message stream.
func (r *MessageRepository) Subscribe(chatID string, fn func([]models.Message)) (store.Unsubscribe, error) {
	return r.store.SubscribeQuery(MessagesCollection(chatID), nil,
		[]store.Order{{Field: "sentAt"}},
		func(docs []store.Document) {
			messages, err := decodeMessages(docs)
			if err != nil {
				return
			}
			fn(messages)
		},
	)
}

// MarkRead stages a read-flag flip onto a write batch. The flag only moves
// false to true; re-staging an already read message is a harmless overwrite.
func (r *MessageRepository) MarkRead(batch store.WriteBatch, chatID, messageID string) {
	batch.Update(MessagesCollection(chatID)+"/"+messageID, map[string]any{
		"read": true,
	})
}

func MessagesCollection(chatID string) string {
	return ChatPath(chatID) + "/messages"
}

func decodeMessages(docs []store.Document) ([]models.Message, error) {
	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		var message models.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, fmt.Errorf("decode message %s: %w", doc.ID, err)
		}
		message.ID = doc.ID
		messages = append(messages, message)
	}
	return messages, nil
}

func planSnapshot(plan *models.Plan) map[string]any {
	days := make([]any, 0, len(plan.Days))
	for _, day := range plan.Days {
		workouts := make([]any, 0, len(day.Workouts))
		for _, workout := range day.Workouts {
			workouts = append(workouts, map[string]any{
				"name":     workout.Name,
				"duration": workout.Duration,
			})
		}
		days = append(days, map[string]any{
			"dayName":     day.DayName,
			"calories":    day.Calories,
			"protein":     day.Protein,
			"carbs":       day.Carbs,
			"fat":         day.Fat,
			"waterIntake": day.WaterIntake,
			"sleepHours":  day.SleepHours,
			"workouts":    workouts,
		})
	}
	return map[string]any{
		"id":          plan.ID,
		"dietitianId": plan.DietitianID,
		"name":        plan.Name,
		"description": plan.Description,
		"days":        days,
		"isDefault":   plan.IsDefault,
		"createdAt":   plan.CreatedAt,
	}
}
