package model

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"
)

// ErrToolNotFound is returned by ToolGateway.Invoke when the requested tool
// name matches no entry in the current catalog. Catalogs can change between
// calls, so callers must treat this as a per-call condition, not a crash.
var ErrToolNotFound = errors.New("tool not found")

// PassageMetadata describes an indexed memory passage.
type PassageMetadata struct {
	Role     string `json:"role"` // "user" or "assistant"
	ThreadID string `json:"thread_id"`
}

// MemoryGateway wraps the similarity store.
type MemoryGateway interface {
	// Retrieve returns up to k passages ranked by similarity to query.
	Retrieve(ctx context.Context, query string, k int) ([]string, error)

	// Index stores a passage with its metadata. Storage is append-only.
	Index(ctx context.Context, text string, meta PassageMetadata) error
}

// ToolGateway wraps tool discovery and invocation. The catalog may change
// between calls, so the engine re-fetches it on every generate invocation.
type ToolGateway interface {
	// ListTools returns the current tool catalog. An empty catalog is a
	// valid, if degraded, operating mode.
	ListTools(ctx context.Context) ([]*schema.ToolInfo, error)

	// Invoke resolves name against the current catalog and executes the
	// tool with the given JSON arguments. Returns ErrToolNotFound for
	// stale names.
	Invoke(ctx context.Context, name string, argumentsJSON string) (string, error)
}

// CheckpointRepository persists the full ConversationState keyed by thread.
type CheckpointRepository interface {
	// Load returns the state for threadID, or (nil, nil) when absent.
	Load(ctx context.Context, threadID string) (*ConversationState, error)

	// Save durably replaces the state for threadID. A turn's response must
	// not be treated as delivered until Save succeeds.
	Save(ctx context.Context, threadID string, state *ConversationState) error
}
