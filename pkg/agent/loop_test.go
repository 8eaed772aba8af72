package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubcodes/fw-intellibrowse-agent/pkg/tool"
)

// scriptedProvider replays canned completions in order, streaming each one as
// two fragments to exercise the delta path.
type scriptedProvider struct {
	replies []string
	calls   int
	err     error
	// lastRequest captures the request of the most recent call.
	lastRequest CompletionRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Stream(_ context.Context, req CompletionRequest, onDelta func(string) error) (string, error) {
	p.lastRequest = req
	if p.err != nil {
		return "", p.err
	}
	if p.calls >= len(p.replies) {
		return "", fmt.Errorf("unexpected provider call %d", p.calls)
	}
	reply := p.replies[p.calls]
	p.calls++

	mid := len(reply) / 2
	for _, frag := range []string{reply[:mid], reply[mid:]} {
		if frag == "" {
			continue
		}
		if err := onDelta(frag); err != nil {
			return "", err
		}
	}
	return reply, nil
}

func newTestRegistry(t *testing.T) *tool.Registry {
	t.Helper()

	registry := tool.NewRegistry(zerolog.Nop())
	require.NoError(t, registry.Register(tool.Definition{
		Name:        "browser.search",
		Description: "Search the web.",
		Parameters: []tool.Parameter{
			{Name: "query", Description: "Search query.", Required: true},
		},
		Handler: func(_ context.Context, params map[string]string) (string, error) {
			return "Results for " + params["query"] + ": 3 articles found", nil
		},
	}))
	require.NoError(t, registry.Register(tool.Definition{
		Name:        "browser.click",
		Description: "Click an element.",
		Parameters: []tool.Parameter{
			{Name: "selector", Description: "CSS selector.", Required: true},
		},
		Handler: func(context.Context, map[string]string) (string, error) {
			return "", errors.New("element not found")
		},
	}))
	return registry
}

func newTestLoop(t *testing.T, provider Provider, maxTurns int) *Loop {
	t.Helper()

	loop, err := NewLoop(LoopConfig{
		Provider: provider,
		Registry: newTestRegistry(t),
		Logger:   zerolog.Nop(),
		MaxTurns: maxTurns,
	})
	require.NoError(t, err)
	return loop
}

func collectEvents(t *testing.T, loop *Loop, instruction string) ([]Event, Result) {
	t.Helper()

	var events []Event
	result, err := loop.Run(context.Background(), instruction, func(ev Event) bool {
		events = append(events, ev)
		return true
	})
	require.NoError(t, err)
	return events, result
}

func TestLoopSearchThenAnswer(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		"Thought: I should search for recent news.\nAction: browser.search(query=\"artificial intelligence news\")",
		"The latest AI developments are promising. Found 3 articles.",
	}}
	loop := newTestLoop(t, provider, 0)

	events, result := collectEvents(t, loop, "Search for artificial intelligence news")

	var types []EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{
		EventAssistant, EventAssistant,
		EventToolCall,
		EventObservation,
		EventAssistant, EventAssistant,
		EventComplete,
	}, types)

	toolCall := events[2]
	assert.Equal(t, "browser.search", toolCall.Tool)
	assert.Equal(t, map[string]string{"query": "artificial intelligence news"}, toolCall.Params)

	assert.Equal(t, "Results for artificial intelligence news: 3 articles found", events[3].Content)

	assert.Equal(t, EventComplete, result.Final.Type)
	assert.Equal(t, "The latest AI developments are promising. Found 3 articles.", result.Final.Content)
	assert.Equal(t, 1, result.Turns)

	// Assistant fragments reassemble to the full completions.
	assert.Equal(t,
		provider.replies[0]+provider.replies[1],
		events[0].Content+events[1].Content+events[4].Content+events[5].Content)
}

func TestLoopBufferedMatchesStreaming(t *testing.T) {
	replies := []string{
		"Thought: search first.\nAction: browser.search(query=\"go generics\")",
		"Generics landed in Go 1.18.",
	}

	streamed := newTestLoop(t, &scriptedProvider{replies: replies}, 0)
	_, streamResult := collectEvents(t, streamed, "Tell me about Go generics")

	buffered := newTestLoop(t, &scriptedProvider{replies: replies}, 0)
	answer, err := buffered.Execute(context.Background(), "Tell me about Go generics")
	require.NoError(t, err)

	assert.Equal(t, streamResult.Final.Content, answer)
	assert.Equal(t, streamed.History(), buffered.History())
}

func TestLoopStopSequencePassed(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"Done."}}
	loop := newTestLoop(t, provider, 0)

	_, err := loop.Execute(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, []string{"Observation:"}, provider.lastRequest.Stop)
}

func TestLoopUnknownToolRecovered(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		"Action: browser.teleport(to=\"mars\")",
		"I cannot teleport; here is an answer instead.",
	}}
	loop := newTestLoop(t, provider, 0)

	events, result := collectEvents(t, loop, "go to mars")

	var observation string
	for _, ev := range events {
		if ev.Type == EventObservation {
			observation = ev.Content
		}
	}
	assert.Equal(t, `Unknown tool "browser.teleport". Known tools: browser.click, browser.search`, observation)
	assert.Equal(t, EventComplete, result.Final.Type)
}

func TestLoopToolErrorBecomesObservation(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		"Action: browser.click(selector=\"#missing\")",
		"The element could not be clicked.",
	}}
	loop := newTestLoop(t, provider, 0)

	events, result := collectEvents(t, loop, "click it")

	var observation string
	for _, ev := range events {
		if ev.Type == EventObservation {
			observation = ev.Content
		}
	}
	assert.Equal(t, "Error executing tool browser.click: element not found", observation)
	assert.Equal(t, EventComplete, result.Final.Type)

	// The observation reaches the model with the transcript prefix.
	history := loop.History()
	last := history[len(history)-2]
	assert.Equal(t, RoleUser, last.Role)
	assert.Equal(t, "Observation: Error executing tool browser.click: element not found", last.Content)
}

func TestLoopTurnBudgetExhausted(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		"Thought: keep searching.\nAction: browser.search(query=\"a\")",
		"Thought: keep searching.\nAction: browser.search(query=\"b\")",
	}}
	loop := newTestLoop(t, provider, 2)

	events, result := collectEvents(t, loop, "never finish")

	assert.Equal(t, EventError, result.Final.Type)
	assert.Equal(t, 2, result.Turns)
	assert.True(t, strings.HasPrefix(result.Final.Content, provider.replies[1]))
	assert.Contains(t, result.Final.Content, "turn budget was exhausted")

	// Exactly one terminal event, and it is the last one.
	var terminals int
	for _, ev := range events {
		if ev.IsTerminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.True(t, events[len(events)-1].IsTerminal())
}

func TestLoopProviderFailure(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("connection refused")}
	loop := newTestLoop(t, provider, 0)

	var events []Event
	_, err := loop.Run(context.Background(), "hello", func(ev Event) bool {
		events = append(events, ev)
		return true
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	// No terminal event is emitted on provider failure; the caller decides.
	for _, ev := range events {
		assert.False(t, ev.IsTerminal())
	}
}

func TestLoopHistoryGrowsAcrossInstructions(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		"First answer.",
		"Second answer.",
	}}
	loop := newTestLoop(t, provider, 0)

	_, err := loop.Execute(context.Background(), "first")
	require.NoError(t, err)

	lenAfterFirst := len(loop.History())

	_, err = loop.Execute(context.Background(), "second")
	require.NoError(t, err)

	history := loop.History()
	assert.Equal(t, lenAfterFirst+2, len(history))
	assert.Equal(t, RoleSystem, history[0].Role)
	assert.Equal(t, "first", history[1].Content)
	assert.Equal(t, "First answer.", history[2].Content)
	assert.Equal(t, "second", history[3].Content)
	assert.Equal(t, "Second answer.", history[4].Content)

	// The second call saw the first exchange in its request.
	assert.Len(t, provider.lastRequest.Messages, 4)
}

func TestLoopBusyRejectsConcurrentEntry(t *testing.T) {
	started := make(chan struct{})
	proceed := make(chan struct{})

	blocking := providerFunc(func(_ context.Context, _ CompletionRequest, _ func(string) error) (string, error) {
		close(started)
		<-proceed
		return "done", nil
	})
	loop := newTestLoop(t, blocking, 0)

	errCh := make(chan error, 1)
	go func() {
		_, err := loop.Execute(context.Background(), "slow")
		errCh <- err
	}()

	<-started
	assert.True(t, loop.Busy())
	_, err := loop.Execute(context.Background(), "concurrent")
	assert.ErrorIs(t, err, ErrLoopBusy)

	close(proceed)
	require.NoError(t, <-errCh)
	assert.False(t, loop.Busy())
}

func TestLoopEmitFalseCancelsRun(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"Some long answer."}}
	loop := newTestLoop(t, provider, 0)

	_, err := loop.Run(context.Background(), "hello", func(Event) bool { return false })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, loop.Busy())
}

func TestLoopTurnCounterResetsPerInstruction(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		"Action: browser.search(query=\"x\")",
		"First done.",
		"Action: browser.search(query=\"y\")",
		"Second done.",
	}}
	loop := newTestLoop(t, provider, 2)

	_, first := collectEvents(t, loop, "one")
	assert.Equal(t, EventComplete, first.Final.Type)

	_, second := collectEvents(t, loop, "two")
	assert.Equal(t, EventComplete, second.Final.Type)
	assert.Equal(t, 1, second.Turns)
}

// providerFunc adapts a function to the Provider interface.
type providerFunc func(context.Context, CompletionRequest, func(string) error) (string, error)

func (f providerFunc) Name() string { return "func" }

func (f providerFunc) Stream(ctx context.Context, req CompletionRequest, onDelta func(string) error) (string, error) {
	return f(ctx, req, onDelta)
}
