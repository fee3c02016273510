// Package cache provides the byte caches used by the pipeline: an in-memory
// cache for query embeddings and a layered memory+disk cache for fetched
// source documents.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching. The pipeline keeps two caches:
// an in-memory one for query embeddings and a layered one for fetched
// source documents during ingestion.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a namespaced cache key by hashing the raw input. Raw inputs
// (query text, document URLs) are hashed so keys stay filename-safe for the
// disk layer.
func Key(namespace, raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return "lifeflow:v1:" + namespace + ":" + hex.EncodeToString(hash[:])
}
