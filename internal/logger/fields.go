package logger

// Standard field keys. Use these consistently so log lines can be queried
// across components.
const (
	KeyPassID    = "pass_id"
	KeyUserID    = "user_id"
	KeyComponent = "component"

	// Storage
	KeyKey       = "key"
	KeyStoreType = "store_type"
	KeyPath      = "path"
	KeyBytes     = "bytes"

	// Cache
	KeyCacheHit = "cache_hit"
	KeyExpired  = "expired"
	KeyTTL      = "ttl"
	KeyEvicted  = "evicted"

	// Queue
	KeyItemID     = "item_id"
	KeyAction     = "action"
	KeyStatus     = "status"
	KeyRetryCount = "retry_count"
	KeyQueueLen   = "queue_len"
	KeyCapacity   = "capacity"

	// Sync and backend
	KeyCollection = "collection"
	KeyProcessed  = "processed"
	KeyFailed     = "failed"
	KeyTotal      = "total"
	KeyDropped    = "dropped"
	KeyOnline     = "online"
	KeyMethod     = "method"
	KeyURL        = "url"
	KeyHTTPStatus = "http_status"
	KeyAttempt    = "attempt"

	// Generic
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyCount      = "count"
)
