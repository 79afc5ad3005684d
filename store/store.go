package store

import (
	"context"
	"errors"

	"github.com/marginapp/margin/models"
)

type MarginStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, provider string, providerId string) (models.User, error)
	DeleteUser(ctx context.Context, provider string, providerId string) error
	IncrementUserAnnotationCount(ctx context.Context, provider string, providerId string, count int) error

	GetAnnotations(ctx context.Context, documentId string) ([]models.Annotation, error)
	WriteAnnotationBatch(ctx context.Context, annotations []models.Annotation) ([]models.Annotation, error)
	UpdateAnnotation(ctx context.Context, annotation models.Annotation) (models.Annotation, error)
	DeleteAnnotation(ctx context.Context, documentId string, annotationId string, userId string) error
	DeleteUserAnnotations(ctx context.Context, userId string, documentId string) error
	GetUserDocuments(ctx context.Context, userId string) ([]string, error)
	GetUserAnnotationCount(ctx context.Context, userId string, documentId string) (int, error)

	UpsertReadingHistory(ctx context.Context, history models.ReadingHistory) (models.ReadingHistory, error)
	GetReadingHistory(ctx context.Context, userId string, documentId string) (models.ReadingHistory, error)
	ListReadingHistory(ctx context.Context, userId string) ([]models.ReadingHistory, error)
	DeleteReadingHistory(ctx context.Context, userId string, documentId string) error
	DeleteUserReadingHistory(ctx context.Context, userId string) error

	CreateDocument(ctx context.Context, document models.Document) (models.Document, error)
	GetDocument(ctx context.Context, documentId string) (models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrConditionFailed = errors.New("condition not met")
)
