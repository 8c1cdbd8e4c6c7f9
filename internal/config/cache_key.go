package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ContentPoolsKey returns the cache key for the serialized content pools
func (r *CacheKeyStruct) ContentPoolsKey() string {
	return "content:pools"
}

// PresenceSessionsKey returns the sorted set of live sessions for an attempt, scored by last-seen unix ms.
// The hash tag keeps both presence keys of an attempt in one cluster slot.
func (r *CacheKeyStruct) PresenceSessionsKey(attemptID string) string {
	return fmt.Sprintf("presence:{%s}:sessions", attemptID)
}

// PresenceConflictLogKey returns the hash of last conflict-log times per session for an attempt
func (r *CacheKeyStruct) PresenceConflictLogKey(attemptID string) string {
	return fmt.Sprintf("presence:{%s}:logged", attemptID)
}

// IntegrityChannel returns the Redis PubSub channel that carries every recorded cheating event
func (r *CacheKeyStruct) IntegrityChannel() string {
	return "integrity:events"
}

var CacheKey = NewCacheKeyStruct()
