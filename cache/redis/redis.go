package redis

import (
	"context"
	"crypto/tls"
	"log"
	"time"

	"github.com/marginapp/margin/cache"
	"github.com/redis/go-redis/v9"
)

type RedisMarginCache struct {
	client redis.UniversalClient
}

func NewRedisMarginCache(ctx context.Context, devMode bool, redis_endpoint string) (*RedisMarginCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redis_endpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redis_endpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return &RedisMarginCache{client: client}, nil
}

func (redisCache *RedisMarginCache) Publish(ctx context.Context, channel string, message []byte) error {
	if err := redisCache.client.Publish(ctx, channel, message).Err(); err != nil {
		return err
	}
	return nil
}

func (redisCache *RedisMarginCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Helper functions to generate Redis keys with hash tags for cluster compatibility
func buildDocKey(documentId string) string {
	return "doc:{" + documentId + "}"
}

func buildDocDataKey(documentId string) string {
	return "doc:{" + documentId + "}:data"
}

func buildDocCompleteKey(documentId string) string {
	return "doc:{" + documentId + "}:complete"
}

const cacheTTL = 10 * time.Minute

// Design Choice: Split Index/Data Pattern
// Two Redis structures hold a document's annotations:
// 1. ZSet ("doc:{id}"): Stores only AnnotationIDs, ordered by CreatedAt (Score).
//   - Purpose: Maintains chronological order and allows O(1) removal by ID (ZREM).
//   - Why? Storing the full JSON blob here would make delete-by-ID impossible
//     without knowing the exact blob or scanning the set.
//
// 2. Hash ("doc:{id}:data"): Stores AnnotationID -> JSON Blob.
//   - Purpose: fast O(1) data retrieval (HMGET) after getting IDs from the ZSet.
func (redisCache *RedisMarginCache) AddAnnotation(ctx context.Context, documentId string, annotationId string, score int64, annotationData []byte) error {
	key := buildDocKey(documentId)
	dataKey := buildDocDataKey(documentId)
	completeKey := buildDocCompleteKey(documentId)

	pipe := redisCache.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: annotationId})
	pipe.HSet(ctx, dataKey, annotationId, annotationData)
	pipe.Expire(ctx, completeKey, cacheTTL)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Expire(ctx, dataKey, cacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisMarginCache) AddAnnotationsBatch(ctx context.Context, documentId string, annotations []cache.AnnotationCacheItem) error {
	if len(annotations) == 0 {
		return nil
	}

	key := buildDocKey(documentId)
	dataKey := buildDocDataKey(documentId)
	completeKey := buildDocCompleteKey(documentId)

	zMembers := make([]redis.Z, len(annotations))
	// HSet accepts a map[string]interface{} or alternating key/values
	// A flat list of key, value, key, value... is usually most efficient for HSet in go-redis
	hValues := make([]interface{}, len(annotations)*2)

	for i, a := range annotations {
		zMembers[i] = redis.Z{
			Score:  float64(a.Score),
			Member: a.AnnotationId,
		}
		hValues[i*2] = a.AnnotationId
		hValues[i*2+1] = a.Data
	}

	pipe := redisCache.client.Pipeline()
	pipe.ZAdd(ctx, key, zMembers...)
	pipe.HSet(ctx, dataKey, hValues...)
	pipe.Expire(ctx, completeKey, cacheTTL)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Expire(ctx, dataKey, cacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisMarginCache) RemoveAnnotation(ctx context.Context, documentId string, annotationId string) error {
	key := buildDocKey(documentId)
	dataKey := buildDocDataKey(documentId)
	completeKey := buildDocCompleteKey(documentId)

	pipe := redisCache.client.Pipeline()
	pipe.ZRem(ctx, key, annotationId)
	pipe.HDel(ctx, dataKey, annotationId)
	pipe.Expire(ctx, completeKey, cacheTTL)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Expire(ctx, dataKey, cacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetDocumentAnnotationCountFromZCard returns the number of cached annotations
// on a document using ZCard. This is the source of truth for per-document counts.
func (redisCache *RedisMarginCache) GetDocumentAnnotationCountFromZCard(ctx context.Context, documentId string) (int64, error) {
	key := buildDocKey(documentId)
	count, err := redisCache.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (redisCache *RedisMarginCache) GetAnnotations(ctx context.Context, documentId string) ([][]byte, error) {
	key := buildDocKey(documentId)
	dataKey := buildDocDataKey(documentId)
	completeKey := buildDocCompleteKey(documentId)

	// 1. Get last 1000 IDs from ZSet ordered by score
	ids, err := redisCache.client.ZRange(ctx, key, -1000, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return [][]byte{}, nil
	}

	// 2. Fetch data from Hash
	// HMGet returns interface{}, need to cast
	dataMap, err := redisCache.client.HMGet(ctx, dataKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	// 3. Assemble result
	annotations := make([][]byte, 0, len(ids))
	for _, item := range dataMap {
		if item == nil {
			continue // Should not happen if consistency is maintained
		}
		if s, ok := item.(string); ok {
			annotations = append(annotations, []byte(s))
		}
	}

	// Refresh TTL
	pipe := redisCache.client.Pipeline()
	pipe.Expire(ctx, completeKey, cacheTTL)
	pipe.Expire(ctx, key, cacheTTL)
	pipe.Expire(ctx, dataKey, cacheTTL)
	_, _ = pipe.Exec(ctx)

	return annotations, nil
}

func (redisCache *RedisMarginCache) SetDocumentComplete(ctx context.Context, documentId string) error {
	completeKey := buildDocCompleteKey(documentId)
	return redisCache.client.Set(ctx, completeKey, "true", cacheTTL).Err()
}

func (redisCache *RedisMarginCache) IsDocumentComplete(ctx context.Context, documentId string) (bool, error) {
	completeKey := buildDocCompleteKey(documentId)
	val, err := redisCache.client.Exists(ctx, completeKey).Result()
	if err != nil {
		return false, err
	}
	return val > 0, nil
}

func (redisCache *RedisMarginCache) InvalidateDocuments(ctx context.Context, documentIds []string) error {
	if len(documentIds) == 0 {
		return nil
	}

	// In Redis Cluster, keys with different hash tags hash to different slots.
	// Delete each document separately; the 3 keys within a document share a slot.
	for _, documentId := range documentIds {
		key := buildDocKey(documentId)
		dataKey := buildDocDataKey(documentId)
		completeKey := buildDocCompleteKey(documentId)

		if err := redisCache.client.Del(ctx, key, dataKey, completeKey).Err(); err != nil {
			return err
		}
	}

	return nil
}

// User Annotation Count
func (redisCache *RedisMarginCache) IncrementUserAnnotationCount(ctx context.Context, userId string) (int64, error) {
	key := "user:" + userId + ":annotation_count"
	count, err := redisCache.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	redisCache.client.Expire(ctx, key, cacheTTL)
	return count, nil
}

func (redisCache *RedisMarginCache) DecrementUserAnnotationCount(ctx context.Context, userId string) error {
	key := "user:" + userId + ":annotation_count"
	err := redisCache.client.Decr(ctx, key).Err()
	if err != nil {
		return err
	}
	redisCache.client.Expire(ctx, key, cacheTTL)
	return nil
}

func (redisCache *RedisMarginCache) SeedUserAnnotationCount(ctx context.Context, userId string, count int) error {
	key := "user:" + userId + ":annotation_count"
	return redisCache.client.SetNX(ctx, key, count, cacheTTL).Err()
}

func (redisCache *RedisMarginCache) GetUserAnnotationCount(ctx context.Context, userId string) (int, error) {
	key := "user:" + userId + ":annotation_count"
	val, err := redisCache.client.Get(ctx, key).Int()
	if err != nil {
		if err == redis.Nil {
			return -1, nil // Not found
		}
		return 0, err
	}
	return val, nil
}
