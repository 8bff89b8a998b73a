package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhea-assistant/server/internal/agent/graph"
	"github.com/rhea-assistant/server/internal/agent/graph/assembler"
	"github.com/rhea-assistant/server/internal/agent/model"
	"github.com/rhea-assistant/server/internal/agent/repo"
)

// ===== test doubles =====

type scriptedStep struct {
	msg *schema.Message
	err error
}

// scriptedChatModel returns pre-programmed responses in order and records
// the message lists it was called with.
type scriptedChatModel struct {
	mu      sync.Mutex
	steps   []scriptedStep
	calls   [][]*schema.Message
	active  int32
	overlap int32
	delay   time.Duration
}

func (m *scriptedChatModel) Generate(ctx context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if atomic.AddInt32(&m.active, 1) > 1 {
		atomic.StoreInt32(&m.overlap, 1)
	}
	defer atomic.AddInt32(&m.active, -1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, in)
	if len(m.steps) == 0 {
		return nil, errors.New("scripted model exhausted")
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	return step.msg, step.err
}

func (m *scriptedChatModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported by scripted model")
}

func (m *scriptedChatModel) WithTools([]*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

type indexedPassage struct {
	text string
	meta model.PassageMetadata
}

type fakeMemory struct {
	mu          sync.Mutex
	passages    []string
	retrieveErr error
	indexed     []indexedPassage
}

func (f *fakeMemory) Retrieve(_ context.Context, _ string, k int) ([]string, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	if len(f.passages) > k {
		return f.passages[:k], nil
	}
	return f.passages, nil
}

func (f *fakeMemory) Index(_ context.Context, text string, meta model.PassageMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, indexedPassage{text: text, meta: meta})
	return nil
}

type fakeToolGateway struct {
	infos    []*schema.ToolInfo
	handlers map[string]func(ctx context.Context, args string) (string, error)
}

func (f *fakeToolGateway) ListTools(context.Context) ([]*schema.ToolInfo, error) {
	return f.infos, nil
}

func (f *fakeToolGateway) Invoke(ctx context.Context, name, args string) (string, error) {
	h, ok := f.handlers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrToolNotFound, name)
	}
	return h(ctx, args)
}

func emailToolGateway() *fakeToolGateway {
	return &fakeToolGateway{
		infos: []*schema.ToolInfo{{Name: "list_emails", Desc: "List unread emails"}},
		handlers: map[string]func(context.Context, string) (string, error){
			"list_emails": func(context.Context, string) (string, error) {
				return "3 unread messages", nil
			},
		},
	}
}

func newTestEngine(t *testing.T, cm *scriptedChatModel, mem *fakeMemory, tg model.ToolGateway, checkpoints model.CheckpointRepository) *Engine {
	t.Helper()
	runner, err := graph.BuildTurnGraph(context.Background(), graph.Config{
		ChatModel:   cm,
		ModelName:   "test-model",
		Memory:      mem,
		Tools:       tg,
		Checkpoints: checkpoints,
		Prompt:      model.PromptConfig{AssistantName: "Rhea", IncludeToolCatalog: true},
		MemoryTopK:  2,
	})
	require.NoError(t, err)
	return NewEngine(runner, mem, "Rhea")
}

func toolCallMessage(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: id, Type: "function", Function: schema.FunctionCall{Name: name, Arguments: args}},
		},
	}
}

// ===== tests =====

func TestHandleMessage_DirectAnswer(t *testing.T) {
	cm := &scriptedChatModel{steps: []scriptedStep{
		{msg: schema.AssistantMessage("Paris is the capital of France.", nil)},
	}}
	mem := &fakeMemory{}
	checkpoints := repo.NewInMemoryCheckpointRepository()
	engine := newTestEngine(t, cm, mem, &fakeToolGateway{}, checkpoints)

	text, err := engine.HandleMessage(context.Background(), "thread-1", "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", text)

	state, err := checkpoints.Load(context.Background(), "thread-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Len(t, state.History, 2)
	assert.Equal(t, schema.User, state.History[0].Role)
	assert.Equal(t, "What is the capital of France?", state.History[0].Content)
	assert.Equal(t, schema.Assistant, state.History[1].Role)

	// Both sides of the exchange are indexed after delivery.
	require.Len(t, mem.indexed, 2)
	assert.Equal(t, "user", mem.indexed[0].meta.Role)
	assert.Equal(t, "User: What is the capital of France?", mem.indexed[0].text)
	assert.Equal(t, "assistant", mem.indexed[1].meta.Role)
	assert.Equal(t, "thread-1", mem.indexed[1].meta.ThreadID)
}

func TestHandleMessage_RetrievedContextReachesModel(t *testing.T) {
	cm := &scriptedChatModel{steps: []scriptedStep{
		{msg: schema.AssistantMessage("noted", nil)},
	}}
	mem := &fakeMemory{passages: []string{"The user's favourite colour is green."}}
	engine := newTestEngine(t, cm, mem, &fakeToolGateway{}, repo.NewInMemoryCheckpointRepository())

	_, err := engine.HandleMessage(context.Background(), "thread-ctx", "What's my favourite colour?")
	require.NoError(t, err)

	require.Len(t, cm.calls, 1)
	messages := cm.calls[0]
	require.NotEmpty(t, messages)
	assert.Equal(t, schema.System, messages[0].Role)
	assert.Contains(t, messages[0].Content, "The user's favourite colour is green.")
	assert.Equal(t, schema.User, messages[len(messages)-1].Role)
}

func TestHandleMessage_MemoryFailureDegrades(t *testing.T) {
	cm := &scriptedChatModel{steps: []scriptedStep{
		{msg: schema.AssistantMessage("still answering", nil)},
	}}
	mem := &fakeMemory{retrieveErr: errors.New("vector store down")}
	engine := newTestEngine(t, cm, mem, &fakeToolGateway{}, repo.NewInMemoryCheckpointRepository())

	text, err := engine.HandleMessage(context.Background(), "thread-deg", "hello")
	require.NoError(t, err)
	assert.Equal(t, "still answering", text)
}

func TestHandleMessage_ToolPath(t *testing.T) {
	cm := &scriptedChatModel{steps: []scriptedStep{
		{msg: toolCallMessage("t1", "list_emails", "{}")},
		{msg: schema.AssistantMessage("You have 3 unread messages.", nil)},
	}}
	checkpoints := repo.NewInMemoryCheckpointRepository()
	engine := newTestEngine(t, cm, &fakeMemory{}, emailToolGateway(), checkpoints)

	text, err := engine.HandleMessage(context.Background(), "thread-2", "Check my email")
	require.NoError(t, err)
	assert.NotEmpty(t, text)
	assert.NotContains(t, text, "list_emails")
	assert.Equal(t, "You have 3 unread messages.", text)

	state, err := checkpoints.Load(context.Background(), "thread-2")
	require.NoError(t, err)
	require.NotNil(t, state)
	// user, assistant(tool call), tool result, final assistant
	require.Len(t, state.History, 4)
	toolMsg := state.History[2]
	assert.Equal(t, schema.Tool, toolMsg.Role)
	assert.Equal(t, "t1", toolMsg.ToolCallID)
	assert.Equal(t, "3 unread messages", toolMsg.Content)
	assert.Equal(t, schema.Assistant, state.History[3].Role)
	assert.Empty(t, state.History[3].ToolCalls)
}

func TestHandleMessage_UnknownToolDegrades(t *testing.T) {
	cm := &scriptedChatModel{steps: []scriptedStep{
		{msg: toolCallMessage("t2", "nonexistent_tool", "{}")},
		{msg: schema.AssistantMessage("I couldn't find that tool.", nil)},
	}}
	checkpoints := repo.NewInMemoryCheckpointRepository()
	engine := newTestEngine(t, cm, &fakeMemory{}, emailToolGateway(), checkpoints)

	_, err := engine.HandleMessage(context.Background(), "thread-3", "do something odd")
	require.NoError(t, err)

	state, err := checkpoints.Load(context.Background(), "thread-3")
	require.NoError(t, err)
	require.Len(t, state.History, 4)
	toolMsg := state.History[2]
	assert.Equal(t, "t2", toolMsg.ToolCallID)
	assert.Contains(t, toolMsg.Content, "nonexistent_tool")
	assert.Contains(t, strings.ToLower(toolMsg.Content), "error")
}

func TestHandleMessage_EmptyModelOutputGetsApology(t *testing.T) {
	cm := &scriptedChatModel{steps: []scriptedStep{
		{msg: &schema.Message{Role: schema.Assistant, MultiContent: []schema.ChatMessagePart{}}},
	}}
	engine := newTestEngine(t, cm, &fakeMemory{}, &fakeToolGateway{}, repo.NewInMemoryCheckpointRepository())

	text, err := engine.HandleMessage(context.Background(), "thread-4", "say nothing")
	require.NoError(t, err)
	assert.Equal(t, assembler.EmptyAnswerApology, text)
}

func TestHandleMessage_ModelFailureLeavesCheckpointUntouched(t *testing.T) {
	checkpoints := repo.NewInMemoryCheckpointRepository()

	// Seed one good turn.
	cm := &scriptedChatModel{steps: []scriptedStep{
		{msg: schema.AssistantMessage("hello there", nil)},
		{err: errors.New("model unavailable")},
	}}
	mem := &fakeMemory{}
	engine := newTestEngine(t, cm, mem, &fakeToolGateway{}, checkpoints)

	_, err := engine.HandleMessage(context.Background(), "thread-5", "hi")
	require.NoError(t, err)

	text, err := engine.HandleMessage(context.Background(), "thread-5", "and now fail")
	require.Error(t, err)
	assert.Equal(t, assembler.FatalErrorApology, text)

	state, err := checkpoints.Load(context.Background(), "thread-5")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Len(t, state.History, 2, "failed turn must not be persisted")
	assert.Equal(t, "hi", state.History[0].Content)
}

func TestHandleMessage_HistoryIsMonotonic(t *testing.T) {
	cm := &scriptedChatModel{steps: []scriptedStep{
		{msg: schema.AssistantMessage("first", nil)},
		{msg: schema.AssistantMessage("second", nil)},
	}}
	checkpoints := repo.NewInMemoryCheckpointRepository()
	engine := newTestEngine(t, cm, &fakeMemory{}, &fakeToolGateway{}, checkpoints)

	ctx := context.Background()
	_, err := engine.HandleMessage(ctx, "thread-6", "one")
	require.NoError(t, err)
	state1, err := checkpoints.Load(ctx, "thread-6")
	require.NoError(t, err)

	_, err = engine.HandleMessage(ctx, "thread-6", "two")
	require.NoError(t, err)
	state2, err := checkpoints.Load(ctx, "thread-6")
	require.NoError(t, err)

	assert.Greater(t, len(state2.History), len(state1.History))
	// Earlier entries are untouched: append-only, never reordered.
	for i := range state1.History {
		assert.Equal(t, state1.History[i].Content, state2.History[i].Content)
	}
}

func TestHandleMessage_SerializesTurnsPerThread(t *testing.T) {
	cm := &scriptedChatModel{
		delay: 30 * time.Millisecond,
		steps: []scriptedStep{
			{msg: schema.AssistantMessage("a", nil)},
			{msg: schema.AssistantMessage("b", nil)},
		},
	}
	engine := newTestEngine(t, cm, &fakeMemory{}, &fakeToolGateway{}, repo.NewInMemoryCheckpointRepository())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.HandleMessage(context.Background(), "thread-7", "msg")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&cm.overlap), "turns for the same thread must not run concurrently")
}
