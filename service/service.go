package service

import (
	"net/http"
	"time"

	"github.com/marginapp/margin/cache"
	"github.com/marginapp/margin/mq"
	"github.com/marginapp/margin/store"
	"github.com/marginapp/margin/worker"
	"golang.org/x/oauth2"
)

type Service struct {
	Store             store.MarginStore
	Cache             cache.MarginCache
	MQ                mq.MessageQueue
	AnnotationBatcher *worker.AnnotationBatcher
	CounterBatcher    *worker.CounterBatcher
	OAuthConfigs      map[string]*oauth2.Config
	JWTSecret         []byte

	// Document Analysis Service (translation, tags, mindmap, flashcards)
	AnalysisEndpoint string
	analysisClient   *http.Client
}

func NewService(
	store store.MarginStore,
	cache cache.MarginCache,
	mq mq.MessageQueue,
	annotationBatcher *worker.AnnotationBatcher,
	counterBatcher *worker.CounterBatcher,
	oauthConfigs map[string]*oauth2.Config,
	jwtSecret []byte,
	analysisEndpoint string,
) (*Service, error) {
	oauthConfigs, err := addOauthEndpointsAndScopes(oauthConfigs)
	if err != nil {
		return nil, err
	}

	return &Service{
		Store:             store,
		Cache:             cache,
		MQ:                mq,
		AnnotationBatcher: annotationBatcher,
		CounterBatcher:    counterBatcher,
		OAuthConfigs:      oauthConfigs,
		JWTSecret:         jwtSecret,
		AnalysisEndpoint:  analysisEndpoint,
		analysisClient:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}
