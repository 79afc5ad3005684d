package service

import (
	"context"
	"encoding/json"

	"github.com/marginapp/margin/cache"
	"github.com/marginapp/margin/models"
)

// LoadAnnotations returns a document's annotations in chronological order,
// serving from Redis when the cached set is complete and falling back to
// DynamoDB (seeding the cache on the way) when it is not.
func (s *Service) LoadAnnotations(ctx context.Context, documentId string) ([]models.Annotation, error) {
	if err := ValidateDocumentId(documentId); err != nil {
		return nil, err
	}

	redisAnnotationsRaw, err := s.Cache.GetAnnotations(ctx, documentId)
	redisAnnotations := []models.Annotation{}
	if err == nil {
		for _, b := range redisAnnotationsRaw {
			var annotation models.Annotation
			if err := json.Unmarshal(b, &annotation); err == nil {
				redisAnnotations = append(redisAnnotations, annotation)
			}
		}
	}

	isComplete, _ := s.Cache.IsDocumentComplete(ctx, documentId)
	if isComplete && err == nil {
		return redisAnnotations, nil
	}

	// Fallback to DynamoDB + Merge with Redis
	dbAnnotations, err := s.Store.GetAnnotations(ctx, documentId)
	if err != nil {
		return nil, err
	}

	finalAnnotations := mergeAnnotations(dbAnnotations, redisAnnotations)

	// Fetch newest 1100 annotations
	// The quota is 1000, but allow a little slack for in-flight writes
	if len(finalAnnotations) > 1100 {
		finalAnnotations = finalAnnotations[len(finalAnnotations)-1100:]
	}

	batchItems := make([]cache.AnnotationCacheItem, 0, len(dbAnnotations))
	for _, annotation := range dbAnnotations {
		aBytes, _ := json.Marshal(annotation)
		t, _ := getTimeFromUUIDv7(annotation.Id)
		batchItems = append(batchItems, cache.AnnotationCacheItem{
			AnnotationId: annotation.Id,
			Score:        t.UnixMilli(),
			Data:         aBytes,
		})
	}

	if len(batchItems) > 0 {
		s.Cache.AddAnnotationsBatch(ctx, documentId, batchItems)
	} else {
		// Mark as complete even if currently empty
		s.Cache.SetDocumentComplete(ctx, documentId)
	}

	return finalAnnotations, nil
}

// mergeAnnotations zips two id-sorted annotation lists, preferring the Redis
// copy when both hold the same id (it may carry a fresher edit).
func mergeAnnotations(dbAnnotations []models.Annotation, redisAnnotations []models.Annotation) []models.Annotation {
	finalAnnotations := make([]models.Annotation, 0, len(dbAnnotations)+len(redisAnnotations))
	i, j := 0, 0
	for i < len(dbAnnotations) && j < len(redisAnnotations) {
		dbId := dbAnnotations[i].Id
		redisId := redisAnnotations[j].Id

		if dbId == redisId {
			finalAnnotations = append(finalAnnotations, redisAnnotations[j])
			i++
			j++
		} else if dbId < redisId {
			finalAnnotations = append(finalAnnotations, dbAnnotations[i])
			i++
		} else {
			finalAnnotations = append(finalAnnotations, redisAnnotations[j])
			j++
		}
	}
	if i < len(dbAnnotations) {
		finalAnnotations = append(finalAnnotations, dbAnnotations[i:]...)
	}
	if j < len(redisAnnotations) {
		finalAnnotations = append(finalAnnotations, redisAnnotations[j:]...)
	}
	return finalAnnotations
}
