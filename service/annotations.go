package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/marginapp/margin/models"
	"github.com/marginapp/margin/store"
	"github.com/marginapp/margin/worker"
)

const (
	maxUserAnnotations     = 100000
	maxDocumentAnnotations = 1000
)

func (s *Service) enforceUserAndDocumentQuota(ctx context.Context, user models.User, documentId string) error {
	// Check User Quota
	userAnnotationCount, err := s.Cache.GetUserAnnotationCount(ctx, user.Id)
	if err != nil || userAnnotationCount == -1 {
		if userAnnotationCount == -1 {
			// Cache Miss: Fetch from DB
			user, err = s.Store.GetUser(ctx, user.Provider, user.ProviderId)
			if err != nil {
				return err
			}
			s.Cache.SeedUserAnnotationCount(ctx, user.Id, user.AnnotationCount)
			// CRITICAL: Must update userAnnotationCount after cache miss
			// Leaving it at -1 would let every request through the quota check
			// Regression test: TestCreateAnnotation_QuotaExceeded_User_CacheMiss
			userAnnotationCount = user.AnnotationCount
		} else {
			return err
		}
	}
	if userAnnotationCount >= maxUserAnnotations {
		log.Printf("User %s exceeded annotation quota (%d)", user.Id, userAnnotationCount)
		return errors.New("user annotation quota exceeded")
	}

	// Check Document Quota using ZCard
	// If the document is not in cache, load it first
	isComplete, _ := s.Cache.IsDocumentComplete(ctx, documentId)
	if !isComplete {
		_, err := s.LoadAnnotations(ctx, documentId)
		if err != nil {
			log.Printf("Failed to load document %s for quota check: %v", documentId, err)
			// Continue anyway - if we can't load, assume 0 annotations
		}
	}

	documentAnnotationCount, err := s.Cache.GetDocumentAnnotationCountFromZCard(ctx, documentId)
	if err != nil {
		// If ZCard fails, assume 0 annotations
		documentAnnotationCount = 0
	}
	if documentAnnotationCount >= maxDocumentAnnotations {
		log.Printf("Document %s exceeded annotation quota (%d)", documentId, documentAnnotationCount)
		return errors.New("document annotation quota exceeded")
	}
	return nil
}

type CreateParams struct {
	User       models.User
	Annotation models.Annotation
}

type AnnotationMessage struct {
	Type string            `json:"type"`
	Data models.Annotation `json:"data"`
}

type DeleteAnnotationMessage struct {
	Type string               `json:"type"`
	Data DeleteAnnotationData `json:"data"`
}

type DeleteAnnotationData struct {
	DocumentId   string `json:"documentId"`
	AnnotationId string `json:"annotationId"`
	UserId       string `json:"userId"`
}

// CreateAnnotation validates and persists a new annotation. Client-generated
// ids are preserved when they are well-formed UUIDv7 values with a sane
// timestamp; anything else gets a fresh server-side id.
func (s *Service) CreateAnnotation(ctx context.Context, params CreateParams) (models.Annotation, error) {
	// 1. Validation
	if err := ValidateDocumentId(params.Annotation.DocumentId); err != nil {
		return models.Annotation{}, err
	}
	if err := ValidateAnnotation(params.Annotation); err != nil {
		return models.Annotation{}, err
	}

	// 2. Quota Enforcement
	if err := s.enforceUserAndDocumentQuota(ctx, params.User, params.Annotation.DocumentId); err != nil {
		return models.Annotation{}, err
	}

	// 3. ID Assignment
	if params.Annotation.Id != "" {
		t, err := getTimeFromUUIDv7(params.Annotation.Id)
		if err != nil || t.After(time.Now()) {
			// Client id is not an honest UUIDv7; replace it
			params.Annotation.Id = ""
		}
	}
	if params.Annotation.Id == "" {
		annotationUUID, err := uuid.NewV7()
		if err != nil {
			return models.Annotation{}, err
		}
		params.Annotation.Id = annotationUUID.String()
	}

	params.Annotation.UserId = params.User.Id
	if params.Annotation.CreatedAt.IsZero() {
		params.Annotation.CreatedAt = time.Now()
	}
	annotation := params.Annotation

	// Async side-effects - return to caller as soon as the id is settled
	go func() {
		// 4. Increment User Counter
		s.Cache.IncrementUserAnnotationCount(context.Background(), params.User.Id)
		// Note: Document counter comes from ZCard, no separate increment needed

		// 5. Add to Annotation Batcher
		s.AnnotationBatcher.WriteCh <- worker.BatchedAnnotation{
			Annotation:     annotation,
			UserProvider:   params.User.Provider,
			UserProviderId: params.User.ProviderId,
		}

		// 6. Add to Cache
		annotationBytes, err := json.Marshal(annotation)
		if err == nil {
			t, _ := getTimeFromUUIDv7(annotation.Id)
			s.Cache.AddAnnotation(context.Background(), annotation.DocumentId, annotation.Id, t.UnixMilli(), annotationBytes)
		}

		// 7. Broadcast New Annotation
		msg := AnnotationMessage{
			Type: "new_annotation",
			Data: annotation,
		}
		msgBytes, _ := json.Marshal(msg)
		s.Cache.Publish(context.Background(), "doc:"+annotation.DocumentId, msgBytes)
	}()

	return annotation, nil
}

type UpdateParams struct {
	User         models.User
	DocumentId   string
	AnnotationId string
	Content      string
	Color        string
}

// UpdateAnnotation applies a content/color edit. The store enforces that the
// caller owns the annotation.
func (s *Service) UpdateAnnotation(ctx context.Context, params UpdateParams) (models.Annotation, error) {
	if err := ValidateDocumentId(params.DocumentId); err != nil {
		return models.Annotation{}, err
	}
	if err := ValidateAnnotationPatch(params.Content, params.Color); err != nil {
		return models.Annotation{}, err
	}

	updated, err := s.Store.UpdateAnnotation(ctx, models.Annotation{
		Id:         params.AnnotationId,
		DocumentId: params.DocumentId,
		UserId:     params.User.Id,
		Content:    params.Content,
		Color:      params.Color,
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		return models.Annotation{}, err
	}

	// Async side-effects - return to caller as soon as the store operation is done
	go func() {
		// Refresh the cache entry under the original score so ordering is stable
		annotationBytes, err := json.Marshal(updated)
		if err == nil {
			t, _ := getTimeFromUUIDv7(updated.Id)
			s.Cache.AddAnnotation(context.Background(), updated.DocumentId, updated.Id, t.UnixMilli(), annotationBytes)
		}

		msg := AnnotationMessage{
			Type: "update_annotation",
			Data: updated,
		}
		msgBytes, _ := json.Marshal(msg)
		s.Cache.Publish(context.Background(), "doc:"+updated.DocumentId, msgBytes)
	}()

	return updated, nil
}

type DeleteParams struct {
	User         models.User
	DocumentId   string
	AnnotationId string
}

func (s *Service) DeleteAnnotation(ctx context.Context, params DeleteParams) error {
	// 1. Validate document id
	if err := ValidateDocumentId(params.DocumentId); err != nil {
		return err
	}

	// 2. Remove from Annotation Batcher (if pending)
	s.AnnotationBatcher.DeleteCh <- worker.DeleteAnnotationRequest{
		AnnotationId: params.AnnotationId,
		UserId:       params.User.Id,
	}

	// 3. Delete from Store
	err := s.Store.DeleteAnnotation(ctx, params.DocumentId, params.AnnotationId, params.User.Id)

	if err != store.ErrConditionFailed {
		// Async side-effects - return to caller as soon as the store operation is done
		go func() {
			// 4. Remove from Cache
			s.Cache.RemoveAnnotation(context.Background(), params.DocumentId, params.AnnotationId)

			// 5. Broadcast Delete Annotation
			msg := DeleteAnnotationMessage{
				Type: "delete_annotation",
				Data: DeleteAnnotationData{
					DocumentId:   params.DocumentId,
					AnnotationId: params.AnnotationId,
					UserId:       params.User.Id,
				},
			}
			msgBytes, _ := json.Marshal(msg)
			s.Cache.Publish(context.Background(), "doc:"+params.DocumentId, msgBytes)

			// 6. Decrement User Counter
			s.Cache.DecrementUserAnnotationCount(context.Background(), params.User.Id)
			// Note: Document counter comes from ZCard, no separate decrement needed
		}()
	}

	return err
}

// ClearDocumentAnnotations queues a bulk delete of every annotation the user
// has on one document. The MQ consumer does the throttled work.
func (s *Service) ClearDocumentAnnotations(ctx context.Context, user models.User, documentId string) error {
	if err := ValidateDocumentId(documentId); err != nil {
		return err
	}

	msg := worker.DeleteUserAnnotationsMessage{
		UserId:         user.Id,
		UserProvider:   user.Provider,
		UserProviderId: user.ProviderId,
		DeleteAll:      false,
		DocumentId:     documentId,
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.MQ.Send(ctx, string(msgBytes))
}

func getTimeFromUUIDv7(annotationId string) (time.Time, error) {
	id, err := uuid.FromString(annotationId)
	if err != nil || id.Version() != uuid.V7 {
		if err == nil {
			err = errors.New("not a uuidv7")
		}
		return time.Time{}, err
	}
	ts, err := uuid.TimestampFromV7(id)
	if err != nil {
		return time.Time{}, err
	}
	return ts.Time()
}
