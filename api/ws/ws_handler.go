package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/marginapp/margin/models"
	"github.com/marginapp/margin/service"
)

type Handler struct {
	Service *service.Service
	Hub     *Hub
}

func NewHandler(svc *service.Service, hub *Hub) *Handler {
	return &Handler{
		Service: svc,
		Hub:     hub,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == requiredOrigin
		},
		Subprotocols: []string{"margin-v1"},
	}
}

// ServeWS handles websocket requests from the peer.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	protocols := r.Header.Get("Sec-WebSocket-Protocol")
	protocolsSplit := strings.Split(protocols, ",")

	if len(protocolsSplit) != 2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := strings.TrimSpace(protocolsSplit[1])

	user, authErr := h.Service.AuthenticateToken(r.Context(), token)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unauthenticated"),
		)
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, user, h.HandleWsMessage)

	// Seed User Annotation Quota in Redis
	h.Service.Cache.SeedUserAnnotationCount(context.Background(), user.Id, user.AnnotationCount)

	h.Hub.OpenCh <- client

	// Start pumps
	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

// Websocket message structs
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type documentMessage struct {
	DocumentId string `json:"documentId"`
}

type responseMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	var msg message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		log.Printf("Invalid JSON: %v", err)
		return
	}

	var resp responseMessage

	switch msg.Type {
	case "load":
		var docMsg documentMessage
		if err := json.Unmarshal(msg.Data, &docMsg); err != nil {
			log.Printf("Invalid load data: %v", err)
			return
		}
		resp = h.handleLoad(client, docMsg)

	case "subscribe":
		var docMsg documentMessage
		if err := json.Unmarshal(msg.Data, &docMsg); err != nil {
			log.Printf("Invalid subscribe data: %v", err)
			return
		}
		resp = h.handleSubscribe(client, docMsg)

	case "unsubscribe":
		var docMsg documentMessage
		if err := json.Unmarshal(msg.Data, &docMsg); err != nil {
			log.Printf("Invalid unsubscribe data: %v", err)
			return
		}
		resp = h.handleUnsubscribe(client, docMsg)

	default:
		log.Printf("Unknown message type: %v", msg.Type)
	}

	if resp.Type != "" {
		respBytes, err := json.Marshal(resp)
		if err != nil {
			log.Printf("Error marshaling response JSON: %v", err)
			return
		}
		client.Send <- respBytes
	}
}

func (h *Handler) handleLoad(client *Client, docMsg documentMessage) responseMessage {
	resp := responseMessage{
		Type: "load_response",
	}

	annotations, err := h.Service.LoadAnnotations(context.Background(), docMsg.DocumentId)
	if err != nil {
		log.Printf("LoadAnnotations failed: %v", err)
		resp.Data = map[string]any{"success": false, "documentId": docMsg.DocumentId, "annotations": []models.Annotation{}}
		return resp
	}

	resp.Data = map[string]any{"success": true, "documentId": docMsg.DocumentId, "annotations": annotations}
	return resp
}

func (h *Handler) handleSubscribe(client *Client, docMsg documentMessage) responseMessage {
	resp := responseMessage{
		Type: "subscribe_response",
	}

	if err := service.ValidateDocumentId(docMsg.DocumentId); err != nil {
		log.Printf("Subscribe document id validation failed: %v", err)
		resp.Data = map[string]any{"success": false, "documentId": docMsg.DocumentId}
		return resp
	}

	sub := subscription{client: client, documentId: docMsg.DocumentId}
	h.Hub.SubscribeCh <- sub
	resp.Data = map[string]any{"success": true, "documentId": docMsg.DocumentId}

	return resp
}

func (h *Handler) handleUnsubscribe(client *Client, docMsg documentMessage) responseMessage {
	resp := responseMessage{
		Type: "unsubscribe_response",
	}

	if err := service.ValidateDocumentId(docMsg.DocumentId); err != nil {
		log.Printf("Unsubscribe document id validation failed: %v", err)
		resp.Data = map[string]any{"success": false, "documentId": docMsg.DocumentId}
		return resp
	}

	sub := subscription{client: client, documentId: docMsg.DocumentId}
	h.Hub.UnsubscribeCh <- sub
	resp.Data = map[string]any{"success": true, "documentId": docMsg.DocumentId}

	return resp
}
