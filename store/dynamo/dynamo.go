package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gofrs/uuid/v5"

	"github.com/marginapp/margin/models"
)

type DynamoMarginStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoMarginStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoMarginStore, error) {
	client, err := newDynamoDBClient(context.Background(), devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoMarginStore{client: client, tableName: tableName}, nil
}

func (dynamoStore *DynamoMarginStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	userId, err := uuid.NewV4()
	if err != nil {
		return models.User{}, err
	}
	user.Id = userId.String()

	du := userToDynamo(user)
	du.Created = time.Now().Unix()
	du, _, err = ensureItem(dynamoStore, ctx, du)
	if err != nil {
		return models.User{}, err
	}

	user = userFromDynamo(du)
	return user, nil
}

func (dynamoStore *DynamoMarginStore) GetUser(ctx context.Context, provider string, providerId string) (models.User, error) {
	du, err := getItem[dynamoUser](dynamoStore, ctx, "USER#"+provider+"#"+providerId, "PROFILE", false)
	if err != nil {
		return models.User{}, err
	}

	user := userFromDynamo(du)
	return user, nil
}

func (dynamoStore *DynamoMarginStore) DeleteUser(ctx context.Context, provider string, providerId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, "USER#"+provider+"#"+providerId, "PROFILE", "", "")
}

func (dynamoStore *DynamoMarginStore) IncrementUserAnnotationCount(ctx context.Context, provider string, providerId string, count int) error {
	// Strict mode: only increment if user exists (prevents partial records after delete)
	return incrementCounter(dynamoStore, ctx, "USER#"+provider+"#"+providerId, "PROFILE", "AnnotationCount", count, false)
}

func (dynamoStore *DynamoMarginStore) GetAnnotations(ctx context.Context, documentId string) ([]models.Annotation, error) {
	// Fetch newest 1100 annotations (ScanIndexForward: false)
	// The per-document quota is 1000, but allow a little slack for in-flight writes
	dynamoAnnotations, err := queryAllByPK[dynamoAnnotation](dynamoStore, ctx, "ANNOT#"+documentId, false, 1100)
	if err != nil {
		return []models.Annotation{}, err
	}

	// Annotation ids are UUIDv7, so sort-key order is creation order.
	// Reverse to return chronological order (Oldest -> Newest)
	annotations := make([]models.Annotation, 0, len(dynamoAnnotations))
	for i := len(dynamoAnnotations) - 1; i >= 0; i-- {
		a, err := annotationFromDynamo(dynamoAnnotations[i])
		if err != nil {
			return nil, fmt.Errorf("decode annotation %s: %w", dynamoAnnotations[i].SK, err)
		}
		annotations = append(annotations, a)
	}

	return annotations, nil
}

func (dynamoStore *DynamoMarginStore) WriteAnnotationBatch(ctx context.Context, annotations []models.Annotation) ([]models.Annotation, error) {
	// Convert annotations to Dynamo structs and then to WriteRequests
	var writeRequests []types.WriteRequest
	for _, annotation := range annotations {
		da, err := annotationToDynamo(annotation)
		if err != nil {
			return nil, fmt.Errorf("encode annotation %s: %w", annotation.Id, err)
		}
		avMap, err := attributevalue.MarshalMap(da)
		if err != nil {
			return nil, fmt.Errorf("marshal error: %w", err)
		}

		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{
				Item: avMap,
			},
		})
	}

	// Use the generic writeBatchRequests function
	unprocessed, err := writeBatchRequests[dynamoAnnotation](dynamoStore, ctx, writeRequests)

	// Convert unprocessed Dynamo items back to models.Annotation
	unbatched := make([]models.Annotation, 0, len(unprocessed))
	for _, u := range unprocessed {
		a, convErr := annotationFromDynamo(u)
		if convErr != nil {
			continue
		}
		unbatched = append(unbatched, a)
	}

	return unbatched, err
}

func (dynamoStore *DynamoMarginStore) UpdateAnnotation(ctx context.Context, annotation models.Annotation) (models.Annotation, error) {
	da, err := updateAnnotationContent(dynamoStore, ctx, annotation)
	if err != nil {
		return models.Annotation{}, err
	}
	return annotationFromDynamo(da)
}

func (dynamoStore *DynamoMarginStore) DeleteAnnotation(ctx context.Context, documentId string, annotationId string, userId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, "ANNOT#"+documentId, annotationId, "UserId", userId)
}

func (dynamoStore *DynamoMarginStore) DeleteUserAnnotations(ctx context.Context, userId string, documentId string) error {
	return batchDeleteByGSIThrottled(dynamoStore, ctx, "GSI_UserAnnotations", "UserId", "DocumentId", userId, documentId, time.Duration(50*time.Millisecond))
}

func (dynamoStore *DynamoMarginStore) GetUserDocuments(ctx context.Context, userId string) ([]string, error) {
	results, err := queryAllByGSI(dynamoStore, ctx, "GSI_UserAnnotations", "UserId", userId)
	if err != nil {
		return nil, err
	}

	uniqueDocuments := make(map[string]struct{})
	for _, pk := range results {
		// PK format is ANNOT#<DocumentId>
		if len(pk) > 6 && pk[:6] == "ANNOT#" {
			documentId := pk[6:]
			uniqueDocuments[documentId] = struct{}{}
		}
	}

	documents := make([]string, 0, len(uniqueDocuments))
	for d := range uniqueDocuments {
		documents = append(documents, d)
	}

	return documents, nil
}

func (dynamoStore *DynamoMarginStore) GetUserAnnotationCount(ctx context.Context, userId string, documentId string) (int, error) {
	if documentId == "" {
		// Count all annotations across all documents (no sort key condition)
		return countByGSI(dynamoStore, ctx, "GSI_UserAnnotations", "UserId", userId, "", "")
	}

	// Count annotations on a specific document using sort key condition
	return countByGSI(dynamoStore, ctx, "GSI_UserAnnotations", "UserId", userId, "DocumentId", documentId)
}

func (dynamoStore *DynamoMarginStore) UpsertReadingHistory(ctx context.Context, history models.ReadingHistory) (models.ReadingHistory, error) {
	dh := readingHistoryToDynamo(history)
	if err := putItem(dynamoStore, ctx, dh); err != nil {
		return models.ReadingHistory{}, err
	}
	return readingHistoryFromDynamo(dh), nil
}

func (dynamoStore *DynamoMarginStore) GetReadingHistory(ctx context.Context, userId string, documentId string) (models.ReadingHistory, error) {
	dh, err := getItem[dynamoReadingHistory](dynamoStore, ctx, "READ#"+userId, documentId, false)
	if err != nil {
		return models.ReadingHistory{}, err
	}
	return readingHistoryFromDynamo(dh), nil
}

func (dynamoStore *DynamoMarginStore) ListReadingHistory(ctx context.Context, userId string) ([]models.ReadingHistory, error) {
	items, err := queryAllByPK[dynamoReadingHistory](dynamoStore, ctx, "READ#"+userId, true, 0)
	if err != nil {
		return nil, err
	}

	// Sort-key order is documentId; the service orders by last access.
	history := make([]models.ReadingHistory, 0, len(items))
	for _, dh := range items {
		history = append(history, readingHistoryFromDynamo(dh))
	}

	return history, nil
}

func (dynamoStore *DynamoMarginStore) DeleteReadingHistory(ctx context.Context, userId string, documentId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, "READ#"+userId, documentId, "", "")
}

func (dynamoStore *DynamoMarginStore) DeleteUserReadingHistory(ctx context.Context, userId string) error {
	return deletePartition(dynamoStore, ctx, "READ#"+userId)
}

func (dynamoStore *DynamoMarginStore) CreateDocument(ctx context.Context, document models.Document) (models.Document, error) {
	if document.Id == "" {
		documentId, err := uuid.NewV4()
		if err != nil {
			return models.Document{}, err
		}
		document.Id = documentId.String()
	}

	dd := documentToDynamo(document)
	dd.Created = time.Now().Unix()
	dd, _, err := ensureItem(dynamoStore, ctx, dd)
	if err != nil {
		return models.Document{}, err
	}

	return documentFromDynamo(dd), nil
}

func (dynamoStore *DynamoMarginStore) GetDocument(ctx context.Context, documentId string) (models.Document, error) {
	dd, err := getItem[dynamoDocument](dynamoStore, ctx, "DOC#"+documentId, "PROFILE", false)
	if err != nil {
		return models.Document{}, err
	}

	return documentFromDynamo(dd), nil
}

func (dynamoStore *DynamoMarginStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	items, err := queryItemsByGSI[dynamoDocument](dynamoStore, ctx, "GSI_Documents", "Kind", "DOCUMENT")
	if err != nil {
		return nil, err
	}

	documents := make([]models.Document, 0, len(items))
	for _, dd := range items {
		documents = append(documents, documentFromDynamo(dd))
	}

	return documents, nil
}
