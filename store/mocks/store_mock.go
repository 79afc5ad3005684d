package mocks

import (
	"context"

	"github.com/marginapp/margin/models"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) GetUser(ctx context.Context, provider string, providerId string) (models.User, error) {
	args := m.Called(ctx, provider, providerId)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) DeleteUser(ctx context.Context, provider string, providerId string) error {
	args := m.Called(ctx, provider, providerId)
	return args.Error(0)
}

func (m *MockStore) IncrementUserAnnotationCount(ctx context.Context, provider string, providerId string, count int) error {
	args := m.Called(ctx, provider, providerId, count)
	return args.Error(0)
}

func (m *MockStore) GetAnnotations(ctx context.Context, documentId string) ([]models.Annotation, error) {
	args := m.Called(ctx, documentId)
	return args.Get(0).([]models.Annotation), args.Error(1)
}

func (m *MockStore) WriteAnnotationBatch(ctx context.Context, annotations []models.Annotation) ([]models.Annotation, error) {
	args := m.Called(ctx, annotations)
	return args.Get(0).([]models.Annotation), args.Error(1)
}

func (m *MockStore) UpdateAnnotation(ctx context.Context, annotation models.Annotation) (models.Annotation, error) {
	args := m.Called(ctx, annotation)
	return args.Get(0).(models.Annotation), args.Error(1)
}

func (m *MockStore) DeleteAnnotation(ctx context.Context, documentId string, annotationId string, userId string) error {
	args := m.Called(ctx, documentId, annotationId, userId)
	return args.Error(0)
}

func (m *MockStore) DeleteUserAnnotations(ctx context.Context, userId string, documentId string) error {
	args := m.Called(ctx, userId, documentId)
	return args.Error(0)
}

func (m *MockStore) GetUserDocuments(ctx context.Context, userId string) ([]string, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) GetUserAnnotationCount(ctx context.Context, userId string, documentId string) (int, error) {
	args := m.Called(ctx, userId, documentId)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) UpsertReadingHistory(ctx context.Context, history models.ReadingHistory) (models.ReadingHistory, error) {
	args := m.Called(ctx, history)
	return args.Get(0).(models.ReadingHistory), args.Error(1)
}

func (m *MockStore) GetReadingHistory(ctx context.Context, userId string, documentId string) (models.ReadingHistory, error) {
	args := m.Called(ctx, userId, documentId)
	return args.Get(0).(models.ReadingHistory), args.Error(1)
}

func (m *MockStore) ListReadingHistory(ctx context.Context, userId string) ([]models.ReadingHistory, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]models.ReadingHistory), args.Error(1)
}

func (m *MockStore) DeleteReadingHistory(ctx context.Context, userId string, documentId string) error {
	args := m.Called(ctx, userId, documentId)
	return args.Error(0)
}

func (m *MockStore) DeleteUserReadingHistory(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}

func (m *MockStore) CreateDocument(ctx context.Context, document models.Document) (models.Document, error) {
	args := m.Called(ctx, document)
	return args.Get(0).(models.Document), args.Error(1)
}

func (m *MockStore) GetDocument(ctx context.Context, documentId string) (models.Document, error) {
	args := m.Called(ctx, documentId)
	return args.Get(0).(models.Document), args.Error(1)
}

func (m *MockStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Document), args.Error(1)
}
