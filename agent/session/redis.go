package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/BaSui01/agentswarm/types"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix prefixes every key written by RedisManager.
const DefaultKeyPrefix = "agentswarm:session:"

// RedisManager stores each agent history as a Redis list of JSON messages.
//
// Keys:
//
//	<prefix>index                      set of session ids
//	<prefix><session>:agents           set of agent ids
//	<prefix><session>:agent:<agent>    list of messages
type RedisManager struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// RedisOption configures a RedisManager.
type RedisOption func(*RedisManager)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(m *RedisManager) {
		if prefix != "" {
			m.keyPrefix = prefix
		}
	}
}

// WithTTL expires session keys after ttl of inactivity. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(m *RedisManager) { m.ttl = ttl }
}

// NewRedisManager wraps an existing client.
func NewRedisManager(client redis.UniversalClient, opts ...RedisOption) *RedisManager {
	m := &RedisManager{client: client, keyPrefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *RedisManager) indexKey() string { return m.keyPrefix + "index" }

func (m *RedisManager) agentsKey(sessionID string) string {
	return m.keyPrefix + sessionID + ":agents"
}

func (m *RedisManager) messagesKey(sessionID, agentID string) string {
	return m.keyPrefix + sessionID + ":agent:" + agentID
}

func (m *RedisManager) Load(ctx context.Context, sessionID, agentID string) ([]types.Message, error) {
	if err := validateIDs(sessionID, agentID); err != nil {
		return nil, err
	}
	raw, err := m.client.LRange(ctx, m.messagesKey(sessionID, agentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	msgs := make([]types.Message, 0, len(raw))
	for i, item := range raw {
		var msg types.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (m *RedisManager) Append(ctx context.Context, sessionID, agentID string, msg types.Message) error {
	if err := validateIDs(sessionID, agentID); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	listKey := m.messagesKey(sessionID, agentID)
	agentsKey := m.agentsKey(sessionID)
	pipe := m.client.TxPipeline()
	pipe.RPush(ctx, listKey, data)
	pipe.SAdd(ctx, agentsKey, agentID)
	pipe.SAdd(ctx, m.indexKey(), sessionID)
	if m.ttl > 0 {
		pipe.Expire(ctx, listKey, m.ttl)
		pipe.Expire(ctx, agentsKey, m.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (m *RedisManager) Delete(ctx context.Context, sessionID string) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}
	agents, err := m.client.SMembers(ctx, m.agentsKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list session agents: %w", err)
	}
	keys := []string{m.agentsKey(sessionID)}
	for _, a := range agents {
		keys = append(keys, m.messagesKey(sessionID, a))
	}

	pipe := m.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, m.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (m *RedisManager) List(ctx context.Context) ([]string, error) {
	ids, err := m.client.SMembers(ctx, m.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
