package services

import (
	"context"
	"sort"

	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/repository"
	"github.com/saeid-a/DietChatBack/internal/store"
)

// ReadReconciliation is the write set produced by inspecting a delivered
// message batch from one viewer's side: which messages to flip to read, and
// whether the viewer's unread counter needs an absolute reset.
type ReadReconciliation struct {
	MessageIDs   []string
	ResetCounter bool
}

// ReconcileRead computes the read receipts owed by the viewing role. Only
// messages authored by the other party count; the viewer's own messages are
// never flipped, so the read flag always means "the recipient saw it".
// Running it again over an already reconciled batch yields an empty write
// set, which keeps redelivery of snapshots harmless.
func ReconcileRead(messages []models.Message, viewerRole string) ReadReconciliation {
	var rec ReadReconciliation
	for _, message := range messages {
		if message.SenderRole == viewerRole || message.Read {
			continue
		}
		rec.MessageIDs = append(rec.MessageIDs, message.ID)
	}
	rec.ResetCounter = len(rec.MessageIDs) > 0
	return rec
}

// commitReconciliation persists a non-empty reconciliation as one write
// batch: every read flip plus the counter reset land together.
func commitReconciliation(
	ctx context.Context,
	st store.Store,
	chats *repository.ChatRepository,
	messages *repository.MessageRepository,
	chatID string,
	viewerRole string,
	rec ReadReconciliation,
) error {
	if len(rec.MessageIDs) == 0 {
		return nil
	}

	batch := st.Batch()
	for _, messageID := range rec.MessageIDs {
		messages.MarkRead(batch, chatID, messageID)
	}
	if rec.ResetCounter {
		chats.ResetUnread(batch, chatID, viewerRole)
	}
	return batch.Commit(ctx)
}

// SortMessages orders a batch for display: sentAt ascending with the id as a
// tie-break. Subscriptions re-sort on every delivery, so arrival order of
// change notifications never leaks into display order.
func SortMessages(messages []models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].SentAt.Equal(messages[j].SentAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].SentAt.Before(messages[j].SentAt)
	})
}

func sortChatsByUpdatedAt(chats []models.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
}
