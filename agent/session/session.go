// Package session persists agent conversations so they survive restarts.
//
// A session groups the conversations of one or more agents. Backends store
// messages in append order per (session, agent) pair:
//
//   - FileManager: JSON files on disk
//   - RedisManager: one Redis list per agent
//   - MongoManager: one document per message
//   - MemoryManager: process memory, for tests and short-lived programs
package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/BaSui01/agentswarm/types"
)

var (
	// ErrInvalidID is returned for empty or unsafe session and agent ids.
	ErrInvalidID = errors.New("invalid id")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session manager is closed")
)

// Manager stores conversation history.
type Manager interface {
	// Load returns the messages of agentID in sessionID in append order.
	// An unknown session yields an empty history.
	Load(ctx context.Context, sessionID, agentID string) ([]types.Message, error)
	// Append adds msg to the end of the agent's history.
	Append(ctx context.Context, sessionID, agentID string, msg types.Message) error
	// Delete removes a session and all agent histories in it.
	Delete(ctx context.Context, sessionID string) error
	// List returns all known session ids, sorted.
	List(ctx context.Context) ([]string, error)
}

// Session describes a stored session.
type Session struct {
	ID        string    `json:"session_id" bson:"session_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// ValidateID rejects ids that would be unsafe as file or key names.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." || !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func validateIDs(ids ...string) error {
	for _, id := range ids {
		if err := ValidateID(id); err != nil {
			return err
		}
	}
	return nil
}
