package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/marginapp/margin/api/rest"
	"github.com/marginapp/margin/api/ws"
	"github.com/marginapp/margin/cache"
	"github.com/marginapp/margin/mq"
	"github.com/marginapp/margin/service"
	"github.com/marginapp/margin/store"
	"github.com/marginapp/margin/worker"
	"golang.org/x/oauth2"
)

type MarginAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	wsUpgrader  websocket.Upgrader
	shutdownCtx context.Context
}

func NewMarginAPI(
	marginStore store.MarginStore,
	deleteUserAnnotationsQueue mq.MessageQueue,
	marginCache cache.MarginCache,
	oauthConfigs map[string]*oauth2.Config,
	jwtSecret []byte,
	analysisEndpoint string,
	shutdownCtx context.Context,
) (*MarginAPI, error) {
	wsHub := ws.NewHub(marginCache)
	err := wsHub.InitSubscriptions(shutdownCtx)
	if err != nil {
		log.Printf("Failed to start WS Hub subscriptions service: %v", err)
		return &MarginAPI{}, err
	}
	go wsHub.Run()

	counterBatcher := worker.NewCounterBatcher(marginStore, 60000)
	go counterBatcher.Run(shutdownCtx)

	annotationBatcher := worker.NewAnnotationBatcher(marginStore, 500, counterBatcher)
	go annotationBatcher.Run(shutdownCtx)

	mqConsumer := worker.NewMQConsumer(deleteUserAnnotationsQueue, marginStore, marginCache, counterBatcher)
	go mqConsumer.Run(shutdownCtx)

	svc, err := service.NewService(
		marginStore,
		marginCache,
		deleteUserAnnotationsQueue,
		annotationBatcher,
		counterBatcher,
		oauthConfigs,
		jwtSecret,
		analysisEndpoint,
	)
	if err != nil {
		log.Printf("Failed to create service: %v", err)
		return &MarginAPI{}, err
	}

	restHandler := rest.NewHandler(svc)
	wsHandler := ws.NewHandler(svc, wsHub)

	return &MarginAPI{
		restHandler: restHandler,
		wsHandler:   wsHandler,
		shutdownCtx: shutdownCtx,
	}, nil
}

func (marginAPI *MarginAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/login", marginAPI.restHandler.HandleLogin)
	mux.HandleFunc("/me", marginAPI.restHandler.HandleMe)
	mux.HandleFunc("/api/annotations", marginAPI.restHandler.HandleAnnotations)
	mux.HandleFunc("/api/history", marginAPI.restHandler.HandleHistory)
	mux.HandleFunc("/api/documents", marginAPI.restHandler.HandleDocuments)
	mux.HandleFunc("/api/documents/", marginAPI.restHandler.HandleDocument)

	wsUpgrader := marginAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		marginAPI.wsHandler.ServeWS(wsUpgrader, w, r, marginAPI.shutdownCtx)
	})
}
