package model

import (
	"github.com/cloudwego/eino/schema"
)

// ConversationState is the durable record threaded through one turn of the
// workflow graph and persisted per thread between turns.
//
// Merge policy across node boundaries is fixed: History is append-on-write
// (messages are only ever concatenated at the end, never truncated or
// reordered), every other field is replace-on-write. Nodes must go through
// SetContext/SetAnswer/AppendHistory so the policy stays in one place.
type ConversationState struct {
	// Question is the current user utterance. Set once per turn.
	Question string `json:"question"`

	// Context is the newline-joined retrieved passages. Overwritten each
	// turn by the retrieve node; empty when retrieval is degraded.
	Context string `json:"context"`

	// Answer is the model's latest output: either textual content or a
	// list of requested tool calls (schema.Message carries both shapes).
	Answer *schema.Message `json:"answer,omitempty"`

	// History is the append-only log of user/assistant/tool messages
	// across all turns of the thread.
	History []*schema.Message `json:"history"`
}

// NewConversationState returns an empty state for a fresh thread.
func NewConversationState() *ConversationState {
	return &ConversationState{History: []*schema.Message{}}
}

// SetQuestion replaces the current utterance.
func (s *ConversationState) SetQuestion(q string) {
	s.Question = q
}

// SetContext replaces the retrieved context.
func (s *ConversationState) SetContext(c string) {
	s.Context = c
}

// SetAnswer replaces the model answer.
func (s *ConversationState) SetAnswer(m *schema.Message) {
	s.Answer = m
}

// AppendHistory concatenates messages at the end of the history log.
func (s *ConversationState) AppendHistory(msgs ...*schema.Message) {
	s.History = append(s.History, msgs...)
}

// Clone returns a copy whose history slice is independent of the receiver.
// Message pointers are shared; messages are treated as immutable once
// appended.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	hist := make([]*schema.Message, len(s.History))
	copy(hist, s.History)
	return &ConversationState{
		Question: s.Question,
		Context:  s.Context,
		Answer:   s.Answer,
		History:  hist,
	}
}

// TurnState is the graph-local state for one turn. It is registered via
// compose.WithGenLocalState and mutated only inside eino state handlers
// (WithStatePreHandler / WithStatePostHandler / compose.ProcessState), which
// serialize access, so no extra locking is needed.
type TurnState struct {
	ThreadID     string
	Conversation *ConversationState

	// ToolCallIDSeq synthesizes tool_call ids when the provider omits them.
	ToolCallIDSeq int

	// TotalCostUSD accumulates LLM usage cost across model calls this turn.
	TotalCostUSD float64
}

// QueryInput is the public input of the turn graph.
type QueryInput struct {
	ThreadID string `json:"thread_id"`
	Query    string `json:"query"`
}

// HasToolCalls reports whether the message requests tool invocations.
func HasToolCalls(m *schema.Message) bool {
	return m != nil && len(m.ToolCalls) > 0
}
