// Package orchestrator is the facade tying sessions, agent loops, and the
// tool registry together behind the instruction-processing entry points the
// gateway exposes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shubcodes/fw-intellibrowse-agent/internal/observability"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/agent"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/session"
	"github.com/shubcodes/fw-intellibrowse-agent/pkg/tool"
)

// Config configures an Orchestrator.
type Config struct {
	Provider agent.Provider
	Registry *tool.Registry
	Store    *session.Store
	Logger   zerolog.Logger

	MaxTurns     int
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

func (c Config) validate() error {
	if c.Provider == nil {
		return fmt.Errorf("provider is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("tool registry is required")
	}
	if c.Store == nil {
		return fmt.Errorf("session store is required")
	}
	return nil
}

// Orchestrator owns the session lifecycle and routes instructions to the
// right agent loop. Safe for concurrent use; per-session concurrency is
// serialized by the loop itself.
type Orchestrator struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates an orchestrator from configuration.
func New(cfg Config) (*Orchestrator, error) {
	observability.EnsureRegistered()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}
	return &Orchestrator{cfg: cfg, logger: cfg.Logger}, nil
}

// Result is the buffered response to one instruction.
type Result struct {
	SessionID string `json:"sessionId"`
	Response  string `json:"response"`
}

// SessionInfo describes a live session for introspection endpoints.
type SessionInfo struct {
	SessionID      string          `json:"sessionId"`
	MessageHistory []agent.Message `json:"messageHistory"`
}

// CreateSession provisions a fresh session with an empty conversation and
// returns its id.
func (o *Orchestrator) CreateSession() (string, error) {
	loop, err := agent.NewLoop(agent.LoopConfig{
		Provider:    o.cfg.Provider,
		Registry:    o.cfg.Registry,
		Logger:      o.logger,
		MaxTurns:    o.cfg.MaxTurns,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Preamble:    o.cfg.SystemPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("create agent loop: %w", err)
	}

	sess, err := o.cfg.Store.Create(loop)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sess.ID, nil
}

// resolve returns the session for id. An empty or unknown id provisions a
// fresh session; created reports whether that happened, so callers can tell
// the client the id actually in effect.
func (o *Orchestrator) resolve(id string) (*session.Session, bool, error) {
	if id != "" {
		if sess, ok := o.cfg.Store.Get(id); ok {
			return sess, false, nil
		}
		o.logger.Debug().Str("session_id", id).Msg("Unknown session id, starting a new session")
	}

	newID, err := o.CreateSession()
	if err != nil {
		return nil, false, err
	}
	sess, ok := o.cfg.Store.Get(newID)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrSessionNotFound, newID)
	}
	return sess, true, nil
}

// ProcessInstruction runs one instruction to completion and returns the final
// answer. Turn-budget exhaustion still yields a best-effort answer; provider
// failures, unknown sessions, and concurrent entry surface as errors.
func (o *Orchestrator) ProcessInstruction(ctx context.Context, sessionID, instruction string) (Result, error) {
	if strings.TrimSpace(instruction) == "" {
		return Result{}, ErrInvalidInput
	}

	sess, _, err := o.resolve(sessionID)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	runResult, err := sess.Loop.Run(ctx, instruction, func(agent.Event) bool { return true })
	if err != nil {
		if errors.Is(err, agent.ErrLoopBusy) {
			err = fmt.Errorf("%w: %s", ErrSessionBusy, sess.ID)
		}
		observability.RecordInstruction("buffered", "error", time.Since(start), runResult.Turns)
		return Result{}, err
	}

	sess.Touch(time.Now())
	observability.RecordInstruction("buffered", string(runResult.Final.Type), time.Since(start), runResult.Turns)

	o.logger.Info().
		Str("session_id", sess.ID).
		Str("status", string(runResult.Final.Type)).
		Int("turns", runResult.Turns).
		Msg("Instruction processed")

	return Result{SessionID: sess.ID, Response: runResult.Final.Content}, nil
}

// ProcessInstructionStream runs one instruction and returns a channel of
// stream events. Input and session errors are returned synchronously; once
// the channel is handed out, all failures (including provider faults) arrive
// as a terminal error event. The channel closes after the terminal event or
// when ctx is cancelled.
func (o *Orchestrator) ProcessInstructionStream(ctx context.Context, sessionID, instruction string) (<-chan agent.Event, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, ErrInvalidInput
	}

	sess, created, err := o.resolve(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Loop.Busy() {
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, sess.ID)
	}

	events := make(chan agent.Event, 16)

	go func() {
		defer close(events)

		emit := func(ev agent.Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if created {
			if !emit(agent.Event{Type: agent.EventSession, SessionID: sess.ID}) {
				return
			}
		}

		start := time.Now()
		runResult, err := sess.Loop.Run(ctx, instruction, emit)
		if err != nil {
			status := "error"
			if errors.Is(err, agent.ErrLoopBusy) {
				err = fmt.Errorf("%w: %s", ErrSessionBusy, sess.ID)
			}
			observability.RecordInstruction("streaming", status, time.Since(start), runResult.Turns)
			o.logger.Error().Err(err).Str("session_id", sess.ID).Msg("Streaming instruction failed")
			emit(agent.Event{Type: agent.EventError, Content: err.Error()})
			return
		}

		sess.Touch(time.Now())
		observability.RecordInstruction("streaming", string(runResult.Final.Type), time.Since(start), runResult.Turns)
		o.logger.Info().
			Str("session_id", sess.ID).
			Str("status", string(runResult.Final.Type)).
			Int("turns", runResult.Turns).
			Msg("Streaming instruction processed")
	}()

	return events, nil
}

// GetSessionInfo returns the session's id and full conversation transcript.
func (o *Orchestrator) GetSessionInfo(sessionID string) (SessionInfo, error) {
	sess, ok := o.cfg.Store.Get(sessionID)
	if !ok {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return SessionInfo{
		SessionID:      sess.ID,
		MessageHistory: sess.Loop.History(),
	}, nil
}

// CleanupSession removes a session. Unknown ids are a no-op.
func (o *Orchestrator) CleanupSession(sessionID string) {
	o.cfg.Store.Delete(sessionID)
}

// SessionCount returns the number of live sessions, used by health checks.
func (o *Orchestrator) SessionCount() int {
	return o.cfg.Store.Len()
}
