package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/marginapp/margin/cache"
	"github.com/marginapp/margin/mq"
	"github.com/marginapp/margin/store"
)

type DeleteUserAnnotationsMessage struct {
	UserId         string `json:"userId"`
	UserProvider   string `json:"userProvider"`
	UserProviderId string `json:"userProviderId"`
	DeleteAll      bool   `json:"deleteAll"`
	DocumentId     string `json:"documentId"`
}

type MQConsumer struct {
	deleteUserAnnotationsQueue mq.MessageQueue
	marginStore                store.MarginStore
	marginCache                cache.MarginCache
	counterBatcher             *CounterBatcher
}

func NewMQConsumer(deleteUserAnnotationsQueue mq.MessageQueue, marginStore store.MarginStore, marginCache cache.MarginCache, counterBatcher *CounterBatcher) *MQConsumer {
	return &MQConsumer{
		deleteUserAnnotationsQueue: deleteUserAnnotationsQueue,
		marginStore:                marginStore,
		marginCache:                marginCache,
		counterBatcher:             counterBatcher,
	}
}

// Allow up to 5 minutes for the throttled batch deletion of all the user's annotations
const visibilityTimeout = 300

func (mqConsumer MQConsumer) Run(shutdownCtx context.Context) {
	for {
		msg, err := mqConsumer.deleteUserAnnotationsQueue.Receive(shutdownCtx, visibilityTimeout)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("mqConsumer receive error: %v", err)
			continue
		}

		if msg == nil {
			continue
		}

		mqConsumer.processMessage(msg)
	}
}

// processMessage handles one purge message. The work context is scoped to the
// message so its cancel releases as soon as the message is done, not at
// consumer shutdown.
func (mqConsumer MQConsumer) processMessage(msg *mq.Message) {
	var deleteMsg DeleteUserAnnotationsMessage
	if err := json.Unmarshal([]byte(msg.Body), &deleteMsg); err != nil {
		return
	}

	// timeout should be a little less than queue visibility timeout
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(visibilityTimeout-1)*time.Second)
	defer cancel()

	if deleteMsg.DeleteAll {
		if !mqConsumer.deleteAllForUser(ctx, deleteMsg) {
			return
		}
	} else {
		if !mqConsumer.deleteForDocument(ctx, deleteMsg) {
			return
		}
	}

	if err := mqConsumer.deleteUserAnnotationsQueue.Delete(context.Background(), msg); err != nil {
		log.Printf("mqConsumer delete error: %v", err)
	}
}

// deleteAllForUser is the full account purge: every annotation the user ever
// made, plus their reading history, with cache invalidation for the affected
// documents. Returns false when the message should stay on the queue.
func (mqConsumer MQConsumer) deleteAllForUser(ctx context.Context, deleteMsg DeleteUserAnnotationsMessage) bool {
	// Need the affected documents for cache invalidation
	documents, err := mqConsumer.marginStore.GetUserDocuments(ctx, deleteMsg.UserId)
	if err != nil {
		log.Printf("Failed to get user documents: %v", err)
	}

	// Delete annotations
	err = mqConsumer.marginStore.DeleteUserAnnotations(ctx, deleteMsg.UserId, "")

	// Invalidate cache (so documents reload with correct counts from ZCard)
	if err == nil && documents != nil {
		if cacheErr := mqConsumer.marginCache.InvalidateDocuments(ctx, documents); cacheErr != nil {
			log.Printf("Failed to invalidate documents: %v", cacheErr)
		}
	}

	if err != nil {
		log.Printf("marginStore delete user annotations error: %v", err)
		return false
	}

	if err := mqConsumer.marginStore.DeleteUserReadingHistory(ctx, deleteMsg.UserId); err != nil {
		log.Printf("marginStore delete user reading history error: %v", err)
		return false
	}

	return true
}

// deleteForDocument is the single-document bulk clear (delete all my
// annotations on this paper).
func (mqConsumer MQConsumer) deleteForDocument(ctx context.Context, deleteMsg DeleteUserAnnotationsMessage) bool {
	totalDeleted, countErr := mqConsumer.marginStore.GetUserAnnotationCount(ctx, deleteMsg.UserId, deleteMsg.DocumentId)
	if countErr != nil {
		log.Printf("Failed to get user annotation count for document %s: %v", deleteMsg.DocumentId, countErr)
	}

	err := mqConsumer.marginStore.DeleteUserAnnotations(ctx, deleteMsg.UserId, deleteMsg.DocumentId)
	if err != nil {
		log.Printf("marginStore delete user annotations error: %v", err)
		return false
	}

	if cacheErr := mqConsumer.marginCache.InvalidateDocuments(ctx, []string{deleteMsg.DocumentId}); cacheErr != nil {
		log.Printf("Failed to invalidate document %s: %v", deleteMsg.DocumentId, cacheErr)
	}
	if totalDeleted > 0 {
		mqConsumer.counterBatcher.UpdateCh <- CounterUpdate{
			UserProvider:   deleteMsg.UserProvider,
			UserProviderId: deleteMsg.UserProviderId,
			Delta:          -totalDeleted,
		}
		log.Printf("Deleted %d annotations on document %s for user %s", totalDeleted, deleteMsg.DocumentId, deleteMsg.UserId)
	}

	return true
}
