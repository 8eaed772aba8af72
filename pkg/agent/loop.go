// Package agent implements the Reason-Act-Observe loop that drives one
// conversation session turn-by-turn against a model provider and a tool
// registry.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shubcodes/fw-intellibrowse-agent/internal/observability"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/action"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/tool"
)

// DefaultMaxTurns bounds the Reason-Act-Observe cycle per instruction.
const DefaultMaxTurns = 15

const (
	// observationStop prevents the model from hallucinating its own tool
	// results: generation halts before it can write an Observation line.
	observationStop = "Observation:"

	observationPrefix = "Observation: "

	exhaustedNote     = "\n\n[The turn budget was exhausted before a final answer was reached.]"
	exhaustedFallback = "The turn budget was exhausted before any answer could be produced."
)

// ErrLoopBusy is returned when an instruction arrives while the loop is
// already processing one for the same session.
var ErrLoopBusy = errors.New("agent loop is busy with another instruction")

// Loop owns one session's conversation state and drives it through repeated
// model calls, action parsing, and tool dispatch. Turns within a loop are
// strictly sequential; concurrent entry is rejected with ErrLoopBusy.
type Loop struct {
	provider    Provider
	registry    *tool.Registry
	logger      zerolog.Logger
	maxTurns    int
	temperature float64
	maxTokens   int

	mu       sync.Mutex
	busy     bool
	messages []Message
}

// LoopConfig configures a new loop.
type LoopConfig struct {
	Provider    Provider
	Registry    *tool.Registry
	Logger      zerolog.Logger
	MaxTurns    int
	Temperature float64
	MaxTokens   int
	// Preamble overrides the default system prompt opening. The tool
	// enumeration and response grammar are always appended.
	Preamble string
}

// NewLoop creates a loop seeded with the fixed system prompt derived from
// the registry's current tool set.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	observability.EnsureRegistered()

	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	return &Loop{
		provider:    cfg.Provider,
		registry:    cfg.Registry,
		logger:      cfg.Logger,
		maxTurns:    maxTurns,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		messages: []Message{
			{Role: RoleSystem, Content: BuildSystemPrompt(cfg.Preamble, cfg.Registry.Definitions())},
		},
	}, nil
}

// History returns a copy of the conversation transcript.
func (l *Loop) History() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	history := make([]Message, len(l.messages))
	copy(history, l.messages)
	return history
}

// Busy reports whether an instruction is currently being processed.
func (l *Loop) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.busy
}

func (l *Loop) acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.busy {
		return ErrLoopBusy
	}
	l.busy = true
	return nil
}

func (l *Loop) release() {
	l.mu.Lock()
	l.busy = false
	l.mu.Unlock()
}

func (l *Loop) append(msg Message) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
}

// Execute runs one instruction to completion and returns the final answer.
// A turn-budget exhaustion still yields a best-effort answer; only provider
// failures and concurrent entry surface as errors.
func (l *Loop) Execute(ctx context.Context, instruction string) (string, error) {
	result, err := l.Run(ctx, instruction, func(Event) bool { return true })
	if err != nil {
		return "", err
	}
	return result.Final.Content, nil
}

// Run drives the Reason-Act-Observe cycle for one instruction, invoking emit
// for every stream event including the terminal one. emit returning false
// signals the consumer is gone and cancels the run. The turn counter resets
// on every call; the conversation transcript persists across calls.
//
// Exactly one terminal event is emitted per run unless Run returns an error,
// in which case none was emitted and the caller owns the error surface.
func (l *Loop) Run(ctx context.Context, instruction string, emit func(Event) bool) (Result, error) {
	if err := l.acquire(); err != nil {
		return Result{}, err
	}
	defer l.release()

	runID := uuid.NewString()
	logger := l.logger.With().Str("run_id", runID).Logger()

	l.append(Message{Role: RoleUser, Content: instruction})

	var lastAssistant string

	for turn := 0; turn < l.maxTurns; turn++ {
		select {
		case <-ctx.Done():
			return Result{Turns: turn}, ctx.Err()
		default:
		}

		text, err := l.reason(ctx, emit)
		if err != nil {
			logger.Error().Err(err).Int("turn", turn).Msg("Model provider call failed")
			return Result{Turns: turn}, err
		}

		l.append(Message{Role: RoleAssistant, Content: text})
		lastAssistant = text

		call := action.Parse(text)
		if call == nil {
			logger.Debug().Int("turns", turn).Msg("Final answer produced")
			final := Event{Type: EventComplete, Content: text}
			if !emit(final) {
				return Result{Turns: turn}, context.Canceled
			}
			return Result{Final: final, Turns: turn}, nil
		}

		logger.Debug().
			Str("tool", call.Name).
			Str("params", tool.MarshalParams(call.Params)).
			Msg("Action parsed")

		if !emit(Event{Type: EventToolCall, Tool: call.Name, Params: call.Params}) {
			return Result{Turns: turn}, context.Canceled
		}

		observation := l.act(ctx, call)
		l.append(Message{Role: RoleUser, Content: observationPrefix + observation})

		if !emit(Event{Type: EventObservation, Content: observation}) {
			return Result{Turns: turn}, context.Canceled
		}
	}

	logger.Warn().Int("max_turns", l.maxTurns).Msg("Turn budget exhausted")

	content := exhaustedFallback
	if lastAssistant != "" {
		content = lastAssistant + exhaustedNote
	}
	final := Event{Type: EventError, Content: content}
	if !emit(final) {
		return Result{Turns: l.maxTurns}, context.Canceled
	}
	return Result{Final: final, Turns: l.maxTurns}, nil
}

// reason performs one model call over the full transcript, forwarding
// incremental fragments through emit.
func (l *Loop) reason(ctx context.Context, emit func(Event) bool) (string, error) {
	req := CompletionRequest{
		Messages:    l.History(),
		Stop:        []string{observationStop},
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
	}

	start := time.Now()
	text, err := l.provider.Stream(ctx, req, func(delta string) error {
		if !emit(Event{Type: EventAssistant, Content: delta}) {
			return context.Canceled
		}
		return nil
	})
	observability.RecordProviderCall(l.provider.Name(), time.Since(start), err == nil)

	if err != nil {
		return "", fmt.Errorf("model provider call failed: %w", err)
	}

	return text, nil
}

// act dispatches a parsed tool call and renders the observation text. Tool
// faults are absorbed here so the model can adapt; they never abort the run.
func (l *Loop) act(ctx context.Context, call *action.ToolCall) string {
	if _, ok := l.registry.Get(call.Name); !ok {
		return fmt.Sprintf("Unknown tool %q. Known tools: %s",
			call.Name, strings.Join(l.registry.Names(), ", "))
	}

	output, err := l.registry.Execute(ctx, call.Name, call.Params)
	if err != nil {
		return fmt.Sprintf("Error executing tool %s: %s", call.Name, err)
	}

	return output
}
