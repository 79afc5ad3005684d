package main

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/marginapp/margin/api"
	"github.com/marginapp/margin/cache/redis"
	"github.com/marginapp/margin/mq/sqsmq"
	"github.com/marginapp/margin/store/dynamo"
	"golang.org/x/oauth2"
)

const (
	DynamoDBTable                 = "Margin"
	SQSDeleteUserAnnotationsQueue = "DeleteUserAnnotationsQueue"
)

func main() {
	ctx := context.Background()
	devMode := os.Getenv("DEV_MODE") == "true"

	marginStore, err := dynamo.NewDynamoMarginStore(ctx, devMode, os.Getenv("DYNAMODB_ENDPOINT"), DynamoDBTable)
	if err != nil {
		log.Fatalf("Failed to create dynamodb store: %v", err)
	}

	deleteUserAnnotationsQueue, err := sqsmq.NewSQSMessageQueue(ctx, devMode, os.Getenv("SQS_ENDPOINT"), SQSDeleteUserAnnotationsQueue)
	if err != nil {
		log.Fatalf("Failed to create SQS MQ: %v", err)
	}

	marginCache, err := redis.NewRedisMarginCache(ctx, devMode, os.Getenv("REDIS_ENDPOINT"))
	if err != nil {
		log.Fatalf("Failed to create redis cache: %v", err)
	}

	redirectURL := os.Getenv("OAUTH_REDIRECT_URL")

	var oauthConfigs = map[string]*oauth2.Config{
		"github": {
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			RedirectURL:  redirectURL,
		},
		"google": {
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURL:  redirectURL,
		},
	}

	jwtSecret, err := base64.StdEncoding.DecodeString(os.Getenv("JWT_SECRET"))
	if err != nil {
		log.Fatalf("Failed to decode base64 jwtSecret: %v", err)
	}

	analysisEndpoint := os.Getenv("ANALYSIS_ENDPOINT")

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	marginApi, err := api.NewMarginAPI(marginStore, deleteUserAnnotationsQueue, marginCache, oauthConfigs, jwtSecret, analysisEndpoint, shutdownCtx)
	if err != nil {
		log.Fatalf("Failed to create margin api: %v", err)
	}

	mux := http.NewServeMux()
	marginApi.RegisterRoutes(mux, os.Getenv("ALLOWED_ORIGIN"))

	hostPort := "8080"
	if p := os.Getenv("HOST_PORT"); p != "" {
		hostPort = p
	}
	log.Printf("Starting server on host port: %s\n", hostPort)
	log.Fatal(http.ListenAndServe(":"+hostPort, mux))
}
