package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/marginapp/margin/cache"
	"github.com/marginapp/margin/service"
)

type subscription struct {
	client     *Client
	documentId string
}

type documentBroadcast struct {
	documentId string
	message    []byte
}

// Hub maintains the set of active clients and broadcasts messages to the
// clients.
type Hub struct {
	marginCache           cache.MarginCache
	OpenCh                chan *Client
	CloseCh               chan *Client
	SubscribeCh           chan subscription
	UnsubscribeCh         chan subscription
	UserDeletedCh         chan string
	broadcastCh           chan documentBroadcast
	userToClients         map[string]map[*Client]struct{}
	docToClients          map[string]map[*Client]struct{}
	docToSubscriberCancel map[string]context.CancelFunc
}

func NewHub(marginCache cache.MarginCache) *Hub {
	return &Hub{
		marginCache:           marginCache,
		OpenCh:                make(chan *Client, 256),
		CloseCh:               make(chan *Client, 256),
		SubscribeCh:           make(chan subscription, 1024),
		UnsubscribeCh:         make(chan subscription, 1024),
		UserDeletedCh:         make(chan string, 64),
		broadcastCh:           make(chan documentBroadcast, 1024),
		userToClients:         make(map[string]map[*Client]struct{}),
		docToClients:          make(map[string]map[*Client]struct{}),
		docToSubscriberCancel: make(map[string]context.CancelFunc),
	}
}

const (
	maxConnectionsPerUser         = 3
	maxSubscriptionsPerConnection = 50
)

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.OpenCh:
			if _, ok := h.userToClients[client.user.Id]; !ok {
				h.userToClients[client.user.Id] = make(map[*Client]struct{})
			}

			if len(h.userToClients[client.user.Id]) >= maxConnectionsPerUser {
				log.Printf("User %s reached max connections (%d)", client.user.Id, maxConnectionsPerUser)
				close(client.Send)
				continue
			}

			h.userToClients[client.user.Id][client] = struct{}{}

		case client := <-h.CloseCh:
			for documentId := range client.subscribedDocs {
				delete(h.docToClients[documentId], client)
				if len(h.docToClients[documentId]) == 0 {
					if cancel, ok := h.docToSubscriberCancel[documentId]; ok {
						cancel()
						delete(h.docToSubscriberCancel, documentId)
					}
					delete(h.docToClients, documentId)
				}
			}
			delete(h.userToClients[client.user.Id], client)
			if len(h.userToClients[client.user.Id]) == 0 {
				delete(h.userToClients, client.user.Id)
			}

		case sub := <-h.SubscribeCh:
			if len(sub.client.subscribedDocs) >= maxSubscriptionsPerConnection {
				log.Printf("Connection by user %s reached max subscriptions (%d)", sub.client.user.Id, maxSubscriptionsPerConnection)
				continue
			}
			if h.docToClients[sub.documentId] == nil {
				log.Printf("Subscriber does not exist, creating for document: %s", sub.documentId)

				ctx, cancel := context.WithCancel(context.Background())
				documentId := sub.documentId
				channel := "doc:" + documentId

				// The handler runs on the pub/sub goroutine; it must not
				// touch docToClients. Fan-out happens back on the hub loop.
				err := h.marginCache.Subscribe(ctx, channel, func(messageBytes []byte) {
					h.broadcastCh <- documentBroadcast{documentId: documentId, message: messageBytes}
				})
				if err != nil {
					log.Printf("Failed to create redis sub for channel %s: %v", channel, err)
					cancel()
					continue
				}

				h.docToClients[sub.documentId] = make(map[*Client]struct{})
				h.docToSubscriberCancel[sub.documentId] = cancel
			}
			h.docToClients[sub.documentId][sub.client] = struct{}{}
			sub.client.subscribedDocs[sub.documentId] = struct{}{}

		case unsub := <-h.UnsubscribeCh:
			delete(h.docToClients[unsub.documentId], unsub.client)
			delete(unsub.client.subscribedDocs, unsub.documentId)
			if len(h.docToClients[unsub.documentId]) == 0 {
				if cancel, ok := h.docToSubscriberCancel[unsub.documentId]; ok {
					cancel()
					delete(h.docToSubscriberCancel, unsub.documentId)
				}
				delete(h.docToClients, unsub.documentId)
			}

		case broadcast := <-h.broadcastCh:
			for client := range h.docToClients[broadcast.documentId] {
				select {
				case client.Send <- broadcast.message:
				default:
					// Slow consumers drop events rather than stalling the hub.
				}
			}

		case userId := <-h.UserDeletedCh:
			if clients, ok := h.userToClients[userId]; ok {
				for client := range clients {
					close(client.Send)
					delete(h.userToClients[userId], client)
				}
				delete(h.userToClients, userId)
			}
		}
	}
}

func (h *Hub) InitSubscriptions(shutdownCtx context.Context) error {
	err := h.marginCache.Subscribe(shutdownCtx, "user-deleted", func(message []byte) {
		var userDeletedMsg service.UserDeletedMessage
		if err := json.Unmarshal(message, &userDeletedMsg); err == nil {
			h.UserDeletedCh <- userDeletedMsg.UserId
		}
	})
	if err != nil {
		log.Printf("WS hub failed to subscribe to user-deleted: %v", err)
		return err
	}

	return nil
}
