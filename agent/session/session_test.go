package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/agentswarm/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// runManagerSuite checks behaviour every backend must share.
func runManagerSuite(t *testing.T, newManager func(t *testing.T) Manager) {
	ctx := context.Background()

	t.Run("unknown session is empty", func(t *testing.T) {
		m := newManager(t)
		msgs, err := m.Load(ctx, "nope", "agent")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("append preserves order per agent", func(t *testing.T) {
		m := newManager(t)
		call := types.ToolCall{ID: "call_1", Name: "lookup", Arguments: json.RawMessage(`{"id":"1001"}`)}
		require.NoError(t, m.Append(ctx, "s1", "dispatcher", types.NewUserMessage("hello")))
		require.NoError(t, m.Append(ctx, "s1", "dispatcher", types.NewAssistantMessage("").WithToolCalls([]types.ToolCall{call})))
		require.NoError(t, m.Append(ctx, "s1", "dispatcher", types.NewToolMessage("call_1", "lookup", "shipped")))
		require.NoError(t, m.Append(ctx, "s1", "tracking", types.NewUserMessage("other agent")))

		msgs, err := m.Load(ctx, "s1", "dispatcher")
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "hello", msgs[0].Content)
		require.Len(t, msgs[1].ToolCalls, 1)
		assert.Equal(t, "lookup", msgs[1].ToolCalls[0].Name)
		assert.JSONEq(t, `{"id":"1001"}`, string(msgs[1].ToolCalls[0].Arguments))
		assert.Equal(t, types.RoleTool, msgs[2].Role)
		assert.Equal(t, "call_1", msgs[2].ToolCallID)

		other, err := m.Load(ctx, "s1", "tracking")
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})

	t.Run("list and delete", func(t *testing.T) {
		m := newManager(t)
		require.NoError(t, m.Append(ctx, "b", "a1", types.NewUserMessage("x")))
		require.NoError(t, m.Append(ctx, "a", "a1", types.NewUserMessage("y")))

		ids, err := m.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)

		require.NoError(t, m.Delete(ctx, "a"))
		ids, err = m.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids)

		msgs, err := m.Load(ctx, "a", "a1")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("rejects unsafe ids", func(t *testing.T) {
		m := newManager(t)
		for _, id := range []string{"", "..", "a/b", "x y"} {
			err := m.Append(ctx, id, "agent", types.NewUserMessage("x"))
			assert.ErrorIs(t, err, ErrInvalidID, "id %q", id)
		}
		_, err := m.Load(ctx, "ok", "../etc")
		assert.ErrorIs(t, err, ErrInvalidID)
	})
}

func TestMemoryManager(t *testing.T) {
	runManagerSuite(t, func(t *testing.T) Manager { return NewMemoryManager() })
}

func TestFileManager(t *testing.T) {
	runManagerSuite(t, func(t *testing.T) Manager {
		m, err := NewFileManager(t.TempDir(), nil)
		require.NoError(t, err)
		return m
	})
}

func TestRedisManager(t *testing.T) {
	runManagerSuite(t, func(t *testing.T) Manager {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisManager(client)
	})
}

func TestFileManager_Layout(t *testing.T) {
	dir := t.TempDir()
	m, err := NewFileManager(dir, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Append(ctx, "abc", "order_lookup", types.NewUserMessage("first")))
	require.NoError(t, m.Append(ctx, "abc", "order_lookup", types.NewAssistantMessage("second")))

	msgDir := filepath.Join(dir, "session_abc", "agents", "agent_order_lookup", "messages")
	assert.FileExists(t, filepath.Join(msgDir, "message_0.json"))
	assert.FileExists(t, filepath.Join(msgDir, "message_1.json"))
	assert.NoFileExists(t, filepath.Join(msgDir, "message_1.json.tmp"))

	s, err := m.Session("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", s.ID)
	assert.False(t, s.CreatedAt.After(s.UpdatedAt))
}

func TestFileManager_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileManager(dir, nil)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		require.NoError(t, first.Append(ctx, "s", "a", types.NewUserMessage(fmt.Sprintf("m%d", i))))
	}

	second, err := NewFileManager(dir, nil)
	require.NoError(t, err)
	msgs, err := second.Load(ctx, "s", "a")
	require.NoError(t, err)
	require.Len(t, msgs, 12)
	// numeric, not lexical, ordering
	assert.Equal(t, "m10", msgs[10].Content)
}

func TestRedisManager_KeysAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	m := NewRedisManager(client, WithKeyPrefix("test:"), WithTTL(time.Minute))
	require.NoError(t, m.Append(context.Background(), "s1", "agent", types.NewUserMessage("hi")))

	assert.True(t, mr.Exists("test:s1:agent:agent"))
	assert.True(t, mr.Exists("test:index"))
	assert.Equal(t, time.Minute, mr.TTL("test:s1:agent:agent"))
}

func TestMongoManager(t *testing.T) {
	uri := os.Getenv("AGENTSWARM_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("AGENTSWARM_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := ConnectMongo(ctx, uri)
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	runManagerSuite(t, func(t *testing.T) Manager {
		coll := client.Database("agentswarm_test").Collection(fmt.Sprintf("sessions_%d", time.Now().UnixNano()))
		t.Cleanup(func() { _ = coll.Drop(ctx) })
		_, _ = coll.DeleteMany(ctx, bson.M{})
		m := NewMongoManager(coll)
		require.NoError(t, m.EnsureIndexes(ctx))
		return m
	})
}
