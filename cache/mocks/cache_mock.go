package mocks

import (
	"context"

	"github.com/marginapp/margin/cache"
	"github.com/stretchr/testify/mock"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Publish(ctx context.Context, channel string, message []byte) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockCache) AddAnnotation(ctx context.Context, documentId string, annotationId string, score int64, annotationData []byte) error {
	args := m.Called(ctx, documentId, annotationId, score, annotationData)
	return args.Error(0)
}

func (m *MockCache) AddAnnotationsBatch(ctx context.Context, documentId string, annotations []cache.AnnotationCacheItem) error {
	args := m.Called(ctx, documentId, annotations)
	return args.Error(0)
}

func (m *MockCache) RemoveAnnotation(ctx context.Context, documentId string, annotationId string) error {
	args := m.Called(ctx, documentId, annotationId)
	return args.Error(0)
}

func (m *MockCache) GetAnnotations(ctx context.Context, documentId string) ([][]byte, error) {
	args := m.Called(ctx, documentId)
	return args.Get(0).([][]byte), args.Error(1)
}

func (m *MockCache) GetDocumentAnnotationCountFromZCard(ctx context.Context, documentId string) (int64, error) {
	args := m.Called(ctx, documentId)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) SetDocumentComplete(ctx context.Context, documentId string) error {
	args := m.Called(ctx, documentId)
	return args.Error(0)
}

func (m *MockCache) IsDocumentComplete(ctx context.Context, documentId string) (bool, error) {
	args := m.Called(ctx, documentId)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) InvalidateDocuments(ctx context.Context, documentIds []string) error {
	args := m.Called(ctx, documentIds)
	return args.Error(0)
}

func (m *MockCache) IncrementUserAnnotationCount(ctx context.Context, userId string) (int64, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCache) DecrementUserAnnotationCount(ctx context.Context, userId string) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}

func (m *MockCache) SeedUserAnnotationCount(ctx context.Context, userId string, count int) error {
	args := m.Called(ctx, userId, count)
	return args.Error(0)
}

func (m *MockCache) GetUserAnnotationCount(ctx context.Context, userId string) (int, error) {
	args := m.Called(ctx, userId)
	return args.Int(0), args.Error(1)
}
