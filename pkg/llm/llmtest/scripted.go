// Package llmtest provides a deterministic LLMProvider for tests and offline runs.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"socialsync-be/pkg/llm"
)

// Reply is one scripted answer. A non-nil Err is returned instead of Text.
type Reply struct {
	Text string
	Err  error
}

// Scripted answers calls in order from its queue, then repeats Fallback.
type Scripted struct {
	mu       sync.Mutex
	queue    []Reply
	Fallback string
	Calls    [][]llm.Message
}

var _ llm.LLMProvider = &Scripted{}

func New(texts ...string) *Scripted {
	s := &Scripted{}
	for _, t := range texts {
		s.queue = append(s.queue, Reply{Text: t})
	}
	return s
}

// Then queues another reply.
func (s *Scripted) Then(text string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, Reply{Text: text})
	return s
}

// Fail queues a failure wrapped in llm.ErrGeneration.
func (s *Scripted) Fail(reason string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, Reply{Err: fmt.Errorf("%w: %s", llm.ErrGeneration, reason)})
	return s
}

func (s *Scripted) Chat(ctx context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]llm.Message, len(history))
	copy(snapshot, history)
	s.Calls = append(s.Calls, snapshot)

	if len(s.queue) == 0 {
		return s.Fallback, nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next.Text, next.Err
}

func (s *Scripted) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// CallCount reports how many generations were requested.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// LastCall returns the history of the most recent call.
func (s *Scripted) LastCall() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Calls) == 0 {
		return nil
	}
	return s.Calls[len(s.Calls)-1]
}
