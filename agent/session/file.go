package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentswarm/types"
	"go.uber.org/zap"
)

const (
	sessionDirPrefix = "session_"
	agentDirPrefix   = "agent_"
	messagePrefix    = "message_"
	sessionFile      = "session.json"
)

// FileManager stores sessions as JSON files:
//
//	<dir>/session_<id>/session.json
//	<dir>/session_<id>/agents/agent_<agent>/messages/message_<n>.json
//
// Every file is written to a temp file and renamed into place.
type FileManager struct {
	baseDir string
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewFileManager creates baseDir if needed.
func NewFileManager(baseDir string, logger *zap.Logger) (*FileManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileManager{
		baseDir: baseDir,
		logger:  logger.With(zap.String("component", "session_file")),
	}, nil
}

func (f *FileManager) sessionDir(sessionID string) string {
	return filepath.Join(f.baseDir, sessionDirPrefix+sessionID)
}

func (f *FileManager) messagesDir(sessionID, agentID string) string {
	return filepath.Join(f.sessionDir(sessionID), "agents", agentDirPrefix+agentID, "messages")
}

// Load reads message files ordered by their index.
func (f *FileManager) Load(ctx context.Context, sessionID, agentID string) ([]types.Message, error) {
	if err := validateIDs(sessionID, agentID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	indexes, err := f.messageIndexes(sessionID, agentID)
	if err != nil {
		return nil, err
	}
	dir := f.messagesDir(sessionID, agentID)
	msgs := make([]types.Message, 0, len(indexes))
	for _, n := range indexes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, messageFileName(n)))
		if err != nil {
			return nil, fmt.Errorf("failed to read message %d: %w", n, err)
		}
		var msg types.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message %d: %w", n, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Append writes msg as the next message file and touches session.json.
func (f *FileManager) Append(ctx context.Context, sessionID, agentID string, msg types.Message) error {
	if err := validateIDs(sessionID, agentID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := f.messagesDir(sessionID, agentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create messages directory: %w", err)
	}
	indexes, err := f.messageIndexes(sessionID, agentID)
	if err != nil {
		return err
	}
	next := 0
	if len(indexes) > 0 {
		next = indexes[len(indexes)-1] + 1
	}

	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, messageFileName(next)), data); err != nil {
		return err
	}
	return f.touchSession(sessionID)
}

func (f *FileManager) touchSession(sessionID string) error {
	path := filepath.Join(f.sessionDir(sessionID), sessionFile)
	now := time.Now().UTC()
	s := Session{ID: sessionID, CreatedAt: now}
	if data, err := os.ReadFile(path); err == nil {
		var existing Session
		if json.Unmarshal(data, &existing) == nil && !existing.CreatedAt.IsZero() {
			s.CreatedAt = existing.CreatedAt
		}
	}
	s.UpdatedAt = now
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// Session reads session.json.
func (f *FileManager) Session(sessionID string) (*Session, error) {
	if err := ValidateID(sessionID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(f.sessionDir(sessionID), sessionFile))
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

func (f *FileManager) Delete(_ context.Context, sessionID string) error {
	if err := ValidateID(sessionID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.RemoveAll(f.sessionDir(sessionID)); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	f.logger.Debug("session deleted", zap.String("session_id", sessionID))
	return nil
}

func (f *FileManager) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), sessionDirPrefix) {
			ids = append(ids, strings.TrimPrefix(e.Name(), sessionDirPrefix))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FileManager) messageIndexes(sessionID, agentID string) ([]int, error) {
	entries, err := os.ReadDir(f.messagesDir(sessionID, agentID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read messages directory: %w", err)
	}
	var indexes []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, messagePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, messagePrefix), ".json"))
		if err != nil {
			continue
		}
		indexes = append(indexes, n)
	}
	sort.Ints(indexes)
	return indexes, nil
}

func messageFileName(n int) string {
	return messagePrefix + strconv.Itoa(n) + ".json"
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
