package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/agentswarm/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// messageDocument is the stored form of one message.
type messageDocument struct {
	SessionID string        `bson:"session_id"`
	AgentID   string        `bson:"agent_id"`
	Seq       int64         `bson:"seq"`
	Message   types.Message `bson:"message"`
	CreatedAt time.Time     `bson:"created_at"`
}

// MongoManager stores one document per message in a collection.
type MongoManager struct {
	coll *mongo.Collection
	// mu serializes sequence allocation within this process.
	mu sync.Mutex
}

// NewMongoManager wraps coll. Call EnsureIndexes once before use.
func NewMongoManager(coll *mongo.Collection) *MongoManager {
	return &MongoManager{coll: coll}
}

// ConnectMongo opens a client and pings it.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique (session, agent, seq) index.
func (m *MongoManager) EnsureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "agent_id", Value: 1}, {Key: "seq", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create session index: %w", err)
	}
	return nil
}

func (m *MongoManager) Load(ctx context.Context, sessionID, agentID string) ([]types.Message, error) {
	if err := validateIDs(sessionID, agentID); err != nil {
		return nil, err
	}
	cursor, err := m.coll.Find(ctx,
		bson.M{"session_id": sessionID, "agent_id": agentID},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []messageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	msgs := make([]types.Message, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, d.Message)
	}
	return msgs, nil
}

func (m *MongoManager) Append(ctx context.Context, sessionID, agentID string, msg types.Message) error {
	if err := validateIDs(sessionID, agentID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	seq, err := m.coll.CountDocuments(ctx, bson.M{"session_id": sessionID, "agent_id": agentID})
	if err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}
	_, err = m.coll.InsertOne(ctx, messageDocument{
		SessionID: sessionID,
		AgentID:   agentID,
		Seq:       seq,
		Message:   msg,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (m *MongoManager) Delete(ctx context.Context, sessionID string) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}
	if _, err := m.coll.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (m *MongoManager) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := m.coll.Distinct(ctx, "session_id", bson.D{}).Decode(&ids); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
