package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State tracks one session's lifecycle. Transitions only move forward;
// StateClosed is terminal and means no resources remain held.
type State int

const (
	StateConnecting State = iota
	StateConfiguring
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConfiguring:
		return "configuring"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ClientConfig is the first frame a client sends after connecting, before
// the proxy starts.
type ClientConfig struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
}

// InstructionsFunc produces the agent instructions at configuration time,
// typically from live store data.
type InstructionsFunc func(ctx context.Context) (string, error)

// Session supervises one client's proxied conversation from connect to
// close. It owns both connections and every goroutine spawned for the
// session; when Run returns, all of them are gone.
type Session struct {
	ID           uuid.UUID
	client       Conn
	dialer       Dialer
	registry     *Registry
	instructions InstructionsFunc
	defaultModel string
	log          zerolog.Logger

	state State
}

func NewSession(client Conn, dialer Dialer, registry *Registry, instructions InstructionsFunc, defaultModel string, log zerolog.Logger) *Session {
	id := uuid.New()
	return &Session{
		ID:           id,
		client:       client,
		dialer:       dialer,
		registry:     registry,
		instructions: instructions,
		defaultModel: defaultModel,
		log:          log.With().Str("session_id", id.String()).Logger(),
	}
}

// State reports the session's current lifecycle state. Run drives all
// transitions; State is for observation only.
func (s *Session) State() State {
	return s.state
}

func (s *Session) setState(next State) {
	s.log.Debug().Str("from", s.state.String()).Str("to", next.String()).Msg("session state")
	s.state = next
}

// Run executes the session to completion. The returned error is the fault
// that ended it, or nil for a clean client-initiated close.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateClosed)

	// The client opens with one configuration frame; everything after it is
	// opaque traffic for the bridge.
	cfg, err := s.readClientConfig()
	if err != nil {
		s.closeClient(websocket.CloseProtocolError, "invalid session config")
		_ = s.client.Close()
		return err
	}
	model := cfg.Model
	if model == "" {
		model = s.defaultModel
	}

	s.setState(StateConnecting)
	upstream, err := s.dialer.Dial(ctx, model)
	if err != nil {
		s.closeClient(websocket.CloseInternalServerErr, fmt.Sprintf("Connection error: %v", err))
		_ = s.client.Close()
		return err
	}

	s.setState(StateConfiguring)
	bridge := NewBridge(s.client, upstream, s.registry, s.log)

	instructions := cfg.SystemPrompt
	if instructions == "" {
		instructions, err = s.instructions(ctx)
		if err != nil {
			err = fmt.Errorf("build instructions: %w", err)
		}
	}
	if err == nil {
		err = bridge.Configure(instructions)
	}
	if err != nil {
		s.setState(StateClosing)
		s.closeClient(websocket.CloseInternalServerErr, fmt.Sprintf("Error: %v", err))
		_ = s.client.Close()
		_ = upstream.Close()
		return err
	}

	s.setState(StateActive)
	s.log.Info().Str("model", model).Msg("session active")

	cause := bridge.Run(ctx)

	s.setState(StateClosing)

	if cause != nil && isExpectedClose(cause) {
		s.log.Info().Msg("session ended by peer")
		return nil
	}
	return cause
}

func (s *Session) readClientConfig() (ClientConfig, error) {
	_, data, err := s.client.ReadMessage()
	if err != nil {
		return ClientConfig{}, fmt.Errorf("read session config: %w", err)
	}
	var cfg ClientConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("decode session config: %w", err)
	}
	return cfg, nil
}

func (s *Session) closeClient(code int, reason string) {
	// Close reasons ride in the control frame payload, which websockets cap
	// at 125 bytes.
	if len(reason) > 120 {
		reason = reason[:120]
	}
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.client.WriteMessage(websocket.CloseMessage, msg); err != nil {
		s.log.Debug().Err(err).Msg("close frame not delivered")
	}
}

// isExpectedClose reports whether cause is a peer hanging up normally rather
// than a transport fault.
func isExpectedClose(cause error) bool {
	var closeErr *websocket.CloseError
	if errors.As(cause, &closeErr) {
		return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
	}
	return false
}
