package dynamo

import (
	"encoding/json"
	"time"

	"github.com/marginapp/margin/models"
)

type dynamoUser struct {
	PK              string `dynamodbav:"PK"`
	SK              string `dynamodbav:"SK"`
	Id              string `dynamodbav:"Id"`
	Provider        string `dynamodbav:"Provider"`
	ProviderId      string `dynamodbav:"ProviderId"`
	Username        string `dynamodbav:"Username"`
	Created         int64  `dynamodbav:"Created"`
	AnnotationCount int    `dynamodbav:"AnnotationCount"`
}

// Map domain User -> Dynamo
func userToDynamo(u models.User) dynamoUser {
	return dynamoUser{
		PK:              "USER#" + u.Provider + "#" + u.ProviderId,
		SK:              "PROFILE",
		Id:              u.Id,
		Provider:        u.Provider,
		ProviderId:      u.ProviderId,
		Username:        u.Username,
		Created:         u.Created,
		AnnotationCount: u.AnnotationCount,
	}
}

// Map Dynamo -> domain User
func userFromDynamo(du dynamoUser) models.User {
	return models.User{
		Id:              du.Id,
		Username:        du.Username,
		Provider:        du.Provider,
		ProviderId:      du.ProviderId,
		Created:         du.Created,
		AnnotationCount: du.AnnotationCount,
	}
}

type dynamoAnnotation struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	UserId     string `dynamodbav:"UserId"`
	DocumentId string `dynamodbav:"DocumentId"`
	Type       string `dynamodbav:"Type"`
	Color      string `dynamodbav:"Color"`
	Content    string `dynamodbav:"Content"`
	Layer      string `dynamodbav:"Layer"`
	Position   []byte `dynamodbav:"Position"`
	CreatedAt  int64  `dynamodbav:"CreatedAt"`
	UpdatedAt  int64  `dynamodbav:"UpdatedAt"`
}

// Map domain Annotation -> Dynamo. Position is polymorphic per Type, so it
// is stored as a JSON blob and decoded against the Type on the way out.
func annotationToDynamo(a models.Annotation) (dynamoAnnotation, error) {
	position, err := json.Marshal(a.Position)
	if err != nil {
		return dynamoAnnotation{}, err
	}

	da := dynamoAnnotation{
		PK:         "ANNOT#" + a.DocumentId,
		SK:         a.Id,
		UserId:     a.UserId,
		DocumentId: a.DocumentId,
		Type:       string(a.Type),
		Color:      a.Color,
		Content:    a.Content,
		Layer:      string(a.Layer),
		Position:   position,
		CreatedAt:  a.CreatedAt.UnixMilli(),
	}
	if !a.UpdatedAt.IsZero() {
		da.UpdatedAt = a.UpdatedAt.UnixMilli()
	}
	return da, nil
}

// Map Dynamo -> domain Annotation
func annotationFromDynamo(da dynamoAnnotation) (models.Annotation, error) {
	position, err := positionFromJSON(models.AnnotationType(da.Type), da.Position)
	if err != nil {
		return models.Annotation{}, err
	}

	a := models.Annotation{
		Id:         da.SK,
		DocumentId: da.DocumentId,
		UserId:     da.UserId,
		Type:       models.AnnotationType(da.Type),
		Color:      da.Color,
		Content:    da.Content,
		Layer:      models.Layer(da.Layer),
		Position:   position,
		CreatedAt:  time.UnixMilli(da.CreatedAt),
	}
	if da.UpdatedAt != 0 {
		a.UpdatedAt = time.UnixMilli(da.UpdatedAt)
	}
	return a, nil
}

func positionFromJSON(t models.AnnotationType, data []byte) (models.PositionData, error) {
	if t == models.TypeDrawing {
		var p models.DrawingPosition
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	}

	var p models.RectPosition
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p, nil
}

type dynamoReadingHistory struct {
	PK               string  `dynamodbav:"PK"`
	SK               string  `dynamodbav:"SK"`
	UserId           string  `dynamodbav:"UserId"`
	DocumentId       string  `dynamodbav:"DocumentId"`
	Status           string  `dynamodbav:"Status"`
	NotesCount       int     `dynamodbav:"NotesCount"`
	TimeSpentSeconds int     `dynamodbav:"TimeSpentSeconds"`
	ScrollPosition   float64 `dynamodbav:"ScrollPosition"`
	LastAccessed     int64   `dynamodbav:"LastAccessed"`
}

// Map domain ReadingHistory -> Dynamo. One item per user+document, keyed so
// a user's whole history is a single partition.
func readingHistoryToDynamo(h models.ReadingHistory) dynamoReadingHistory {
	return dynamoReadingHistory{
		PK:               "READ#" + h.UserId,
		SK:               h.DocumentId,
		UserId:           h.UserId,
		DocumentId:       h.DocumentId,
		Status:           string(h.Status),
		NotesCount:       h.NotesCount,
		TimeSpentSeconds: h.TimeSpentSeconds,
		ScrollPosition:   h.ScrollPosition,
		LastAccessed:     h.LastAccessed.UnixMilli(),
	}
}

// Map Dynamo -> domain ReadingHistory
func readingHistoryFromDynamo(dh dynamoReadingHistory) models.ReadingHistory {
	return models.ReadingHistory{
		UserId:           dh.UserId,
		DocumentId:       dh.DocumentId,
		Status:           models.ReadingStatus(dh.Status),
		NotesCount:       dh.NotesCount,
		TimeSpentSeconds: dh.TimeSpentSeconds,
		ScrollPosition:   dh.ScrollPosition,
		LastAccessed:     time.UnixMilli(dh.LastAccessed),
	}
}

type dynamoDocument struct {
	PK                        string             `dynamodbav:"PK"`
	SK                        string             `dynamodbav:"SK"`
	Kind                      string             `dynamodbav:"Kind"`
	Id                        string             `dynamodbav:"Id"`
	Title                     string             `dynamodbav:"Title"`
	URL                       string             `dynamodbav:"URL"`
	Category                  string             `dynamodbav:"Category"`
	ContentVi                 string             `dynamodbav:"ContentVi"`
	Tags                      []string           `dynamodbav:"Tags"`
	MindmapCode               string             `dynamodbav:"MindmapCode"`
	Flashcards                []models.Flashcard `dynamodbav:"Flashcards"`
	ImplementationSuggestions string             `dynamodbav:"ImplementationSuggestions"`
	KeyContributions          string             `dynamodbav:"KeyContributions"`
	Created                   int64              `dynamodbav:"Created"`
}

// Map domain Document -> Dynamo. Kind feeds GSI_Documents so the catalog
// can be listed without a table scan.
func documentToDynamo(d models.Document) dynamoDocument {
	return dynamoDocument{
		PK:                        "DOC#" + d.Id,
		SK:                        "PROFILE",
		Kind:                      "DOCUMENT",
		Id:                        d.Id,
		Title:                     d.Title,
		URL:                       d.URL,
		Category:                  d.Category,
		ContentVi:                 d.ContentVi,
		Tags:                      d.Tags,
		MindmapCode:               d.MindmapCode,
		Flashcards:                d.Flashcards,
		ImplementationSuggestions: d.ImplementationSuggestions,
		KeyContributions:          d.KeyContributions,
		Created:                   d.Created,
	}
}

// Map Dynamo -> domain Document
func documentFromDynamo(dd dynamoDocument) models.Document {
	return models.Document{
		Id:                        dd.Id,
		Title:                     dd.Title,
		URL:                       dd.URL,
		Category:                  dd.Category,
		ContentVi:                 dd.ContentVi,
		Tags:                      dd.Tags,
		MindmapCode:               dd.MindmapCode,
		Flashcards:                dd.Flashcards,
		ImplementationSuggestions: dd.ImplementationSuggestions,
		KeyContributions:          dd.KeyContributions,
		Created:                   dd.Created,
	}
}
