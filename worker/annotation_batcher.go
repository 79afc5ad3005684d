package worker

import (
	"context"
	"log"
	"time"

	"github.com/marginapp/margin/models"
	"github.com/marginapp/margin/store"
)

type DeleteAnnotationRequest struct {
	AnnotationId string
	UserId       string
}

type BatchedAnnotation struct {
	Annotation     models.Annotation
	UserProvider   string
	UserProviderId string
}

type AnnotationBatcher struct {
	WriteCh            chan BatchedAnnotation
	DeleteCh           chan DeleteAnnotationRequest
	marginStore        store.MarginStore
	counterBatcher     *CounterBatcher
	tickerMilliseconds int
}

// Note: Deletes are NOT batched for persistence because DynamoDB BatchWriteItem
// does not support ConditionExpression. We need conditional deletes to ensure
// users can only delete their own annotations (UserId check).
// DeleteCh is only used here to remove *pending* writes from the buffer
// before they are flushed, effectively cancelling the write.
func NewAnnotationBatcher(marginStore store.MarginStore, tickerMilliseconds int, counterBatcher *CounterBatcher) *AnnotationBatcher {
	return &AnnotationBatcher{
		WriteCh:            make(chan BatchedAnnotation, 1024), // buffer to absorb bursts
		DeleteCh:           make(chan DeleteAnnotationRequest, 1024),
		marginStore:        marginStore,
		counterBatcher:     counterBatcher,
		tickerMilliseconds: tickerMilliseconds,
	}
}

func (b *AnnotationBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	batch := make([]models.Annotation, 0, 25)
	// Keep provider metadata per annotation ID to feed the counter after flush
	batchMeta := make(map[string]BatchedAnnotation, 25)
	batchIndices := make(map[string]int, 25)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		// Explicitly ignore cancel to satisfy linter
		// In this case, we don't want to defer cancel(),
		// when shutdownCtx causes this function to return
		// any pending batch writes should finish
		_ = cancel
		unprocessed, err := b.marginStore.WriteAnnotationBatch(ctx, batch)

		if err != nil {
			log.Printf("Error writing annotation batch to dynamo: %v", err)
		}

		// Calculate successes: Everything in batch MINUS unprocessed
		failedMap := make(map[string]bool)
		for _, u := range unprocessed {
			failedMap[u.Id] = true
		}

		for _, a := range batch {
			if !failedMap[a.Id] {
				// Success: bump the owner's durable counter
				if meta, ok := batchMeta[a.Id]; ok {
					b.counterBatcher.UpdateCh <- CounterUpdate{
						UserProvider:   meta.UserProvider,
						UserProviderId: meta.UserProviderId,
						Delta:          1,
					}
				}
			}
		}

		batch = batch[:0]
		clear(batchIndices)
		clear(batchMeta)
	}

	for {
		select {
		case item := <-b.WriteCh:
			batch = append(batch, item.Annotation)
			batchIndices[item.Annotation.Id] = len(batch) - 1
			batchMeta[item.Annotation.Id] = item
			if len(batch) == 25 {
				flush()
			}

		case deleteReq := <-b.DeleteCh:
			if idx, ok := batchIndices[deleteReq.AnnotationId]; ok {
				if batch[idx].UserId == deleteReq.UserId {
					l := len(batch)
					batch[idx] = batch[l-1]
					batch = batch[:l-1]

					// Update index of the moved item
					if idx < len(batch) {
						batchIndices[batch[idx].Id] = idx
					}

					delete(batchIndices, deleteReq.AnnotationId)
					delete(batchMeta, deleteReq.AnnotationId)
				}
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
