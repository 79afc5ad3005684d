package cache

import "context"

type AnnotationCacheItem struct {
	AnnotationId string
	Score        int64
	Data         []byte
}

type MarginCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	AddAnnotation(ctx context.Context, documentId string, annotationId string, score int64, annotationData []byte) error
	AddAnnotationsBatch(ctx context.Context, documentId string, annotations []AnnotationCacheItem) error
	RemoveAnnotation(ctx context.Context, documentId string, annotationId string) error
	GetAnnotations(ctx context.Context, documentId string) ([][]byte, error)
	GetDocumentAnnotationCountFromZCard(ctx context.Context, documentId string) (int64, error)

	SetDocumentComplete(ctx context.Context, documentId string) error
	IsDocumentComplete(ctx context.Context, documentId string) (bool, error)
	InvalidateDocuments(ctx context.Context, documentIds []string) error

	IncrementUserAnnotationCount(ctx context.Context, userId string) (int64, error)
	DecrementUserAnnotationCount(ctx context.Context, userId string) error
	SeedUserAnnotationCount(ctx context.Context, userId string, count int) error
	GetUserAnnotationCount(ctx context.Context, userId string) (int, error)
}
