package agent

import (
	"context"
	"sync"

	"github.com/rhea-assistant/server/internal/agent/graph"
	"github.com/rhea-assistant/server/internal/agent/graph/assembler"
	"github.com/rhea-assistant/server/internal/agent/model"
	logx "github.com/rhea-assistant/server/pkg/logger"
)

// Engine is the entry point the transport adapter calls. It serializes turns
// per thread, runs the workflow graph, assembles the delivered text and
// indexes the exchange into long-term memory after the checkpoint is
// durable.
type Engine struct {
	runner        graph.Runner
	memory        model.MemoryGateway
	assistantName string

	locks sync.Map // threadID -> *sync.Mutex
}

func NewEngine(runner graph.Runner, memory model.MemoryGateway, assistantName string) *Engine {
	return &Engine{
		runner:        runner,
		memory:        memory,
		assistantName: assistantName,
	}
}

// HandleMessage processes one user message for a thread and returns the text
// to deliver. On fatal failure it returns the apology text together with the
// error so the transport layer can log and retry; the checkpoint is left at
// its last good state in that case.
//
// Turns for the same thread are serialized: the checkpoint
// load-execute-save sequence is not atomic, so a second message must wait
// for the prior turn's save. Turns for different threads run concurrently.
func (e *Engine) HandleMessage(ctx context.Context, threadID, userText string) (string, error) {
	mu := e.threadLock(threadID)
	mu.Lock()
	defer mu.Unlock()

	out, err := e.runner.Invoke(ctx, model.QueryInput{ThreadID: threadID, Query: userText})
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("turn failed")
		return assembler.FatalErrorApology, err
	}

	text := assembler.AssembleText(out)
	e.indexExchange(ctx, threadID, userText, text)
	return text, nil
}

// indexExchange stores both sides of the turn in the similarity store.
// Best effort: memory indexing failure never fails a delivered turn.
func (e *Engine) indexExchange(ctx context.Context, threadID, userText, answerText string) {
	if err := e.memory.Index(ctx, "User: "+userText, model.PassageMetadata{
		Role:     "user",
		ThreadID: threadID,
	}); err != nil {
		logx.Warn().Err(err).Str("thread_id", threadID).Msg("failed to index user passage")
	}
	if err := e.memory.Index(ctx, e.assistantName+": "+answerText, model.PassageMetadata{
		Role:     "assistant",
		ThreadID: threadID,
	}); err != nil {
		logx.Warn().Err(err).Str("thread_id", threadID).Msg("failed to index assistant passage")
	}
}

func (e *Engine) threadLock(threadID string) *sync.Mutex {
	v, _ := e.locks.LoadOrStore(threadID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
