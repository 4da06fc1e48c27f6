// Package cache owns the shared Redis connection. The session store keeps
// conversation history on it and the web search tool caches results in it.
//
// Manager wraps a go-redis client with a startup ping, an optional
// background health check, JSON helpers and an idempotent Close.
// Missing keys surface as ErrCacheMiss.
package cache
