package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/rhea-assistant/server/internal/agent/model"
	logx "github.com/rhea-assistant/server/pkg/logger"
)

// Manager mediates between the workflow graph and the checkpoint store:
// it loads or initializes per-thread conversation state and persists it at
// the end of a turn.
type Manager struct {
	checkpoints model.CheckpointRepository
}

func NewManager(checkpoints model.CheckpointRepository) *Manager {
	return &Manager{checkpoints: checkpoints}
}

// LoadOrInit returns the thread's persisted state, or a fresh state when the
// thread has no checkpoint yet.
func (m *Manager) LoadOrInit(ctx context.Context, threadID string) (*model.ConversationState, error) {
	state, err := m.checkpoints.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		logx.Debug().Str("thread_id", threadID).Msg("no checkpoint; starting fresh conversation")
		return model.NewConversationState(), nil
	}
	return state, nil
}

// Save persists the state for the thread. Callers must not treat the turn's
// response as delivered until Save succeeds.
func (m *Manager) Save(ctx context.Context, threadID string, state *model.ConversationState) error {
	return m.checkpoints.Save(ctx, threadID, state)
}

// BuildInitialMessages assembles the first model call of a turn:
// [system, ...history, user(question)]. The history here is the prior turns'
// log; the current question has not been appended yet.
func BuildInitialMessages(systemPrompt string, history []*schema.Message, question string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(question))
	return messages
}

// BuildFollowUpMessages assembles the post-tools model call:
// [system, ...history]. By this point the history already contains the
// current question, the tool-call request and every tool result.
func BuildFollowUpMessages(systemPrompt string, history []*schema.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, history...)
	return messages
}
