// Package realtime provides a client for OpenAI's Realtime API
// for low-latency speech-to-speech conversations with tool use.
package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-orion/internal/log"
)

const (
	DefaultURL   = "wss://api.openai.com/v1/realtime"
	DefaultModel = "gpt-4o-realtime-preview"
	DefaultVoice = "alloy"

	// DefaultToolTimeout bounds one tool call. The read loop waits for the
	// handler, so a hung Google call would otherwise stall the session.
	DefaultToolTimeout = 45 * time.Second

	readTimeout  = 120 * time.Second
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// ErrNotConnected is returned when sending on a closed or unopened session.
var ErrNotConnected = errors.New("realtime: not connected")

// Tool is a function the model can call during the conversation.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Required    []string
	Handler     func(ctx context.Context, args map[string]interface{}) (string, error)
}

// SessionConfig is sent with session.update.
type SessionConfig struct {
	Instructions string
	Voice        string
	Temperature  float64
	Modalities   []string
}

// Client manages the WebSocket connection to the Realtime API.
type Client struct {
	apiKey string
	url    string
	model  string
	logger *slog.Logger

	toolTimeout time.Duration

	ws   *websocket.Conn
	wsMu sync.Mutex

	toolsMu  sync.RWMutex
	tools    []Tool
	toolsMap map[string]Tool

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	connected atomic.Bool
	ready     atomic.Bool
	closed    atomic.Bool

	// Callbacks
	OnTranscript     func(text string, isFinal bool)
	OnAudioDelta     func(audioBase64 string)
	OnToolCall       func(name string, args map[string]interface{}, result string, err error)
	OnError          func(err error)
	OnSessionCreated func()
}

// Option configures a Client.
type Option func(*Client)

// WithURL overrides the websocket endpoint.
func WithURL(u string) Option {
	return func(c *Client) { c.url = u }
}

// WithModel sets the model.
func WithModel(m string) Option {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

// WithToolTimeout sets the deadline given to each model-initiated tool
// call. Non-positive values are ignored.
func WithToolTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.toolTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new Realtime API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		url:      DefaultURL,
		model:    DefaultModel,
		toolsMap: make(map[string]Tool),

		toolTimeout: DefaultToolTimeout,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = log.OrComponent(c.logger, "realtime")
	return c
}

// RegisterTool adds a tool. Tools must be registered before
// ConfigureSession to be announced to the model.
func (c *Client) RegisterTool(tool Tool) {
	c.toolsMu.Lock()
	defer c.toolsMu.Unlock()
	if _, ok := c.toolsMap[tool.Name]; ok {
		for i := range c.tools {
			if c.tools[i].Name == tool.Name {
				c.tools[i] = tool
			}
		}
	} else {
		c.tools = append(c.tools, tool)
	}
	c.toolsMap[tool.Name] = tool
}

// Tools returns the registered tools in registration order.
func (c *Client) Tools() []Tool {
	c.toolsMu.RLock()
	defer c.toolsMu.RUnlock()
	return append([]Tool(nil), c.tools...)
}

// Connect opens the session. Tool handlers run with a context derived
// from ctx; cancelling ctx closes the connection.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("realtime: parse url: %w", err)
	}
	q := u.Query()
	q.Set("model", c.model)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("realtime: connect: %w", err)
	}

	ws.SetPingHandler(func(appData string) error {
		c.wsMu.Lock()
		defer c.wsMu.Unlock()
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	c.ws = ws
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.connected.Store(true)

	go c.handleMessages()
	go c.keepAlive()
	go func() {
		select {
		case <-c.ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	c.logger.Info("connected", "model", c.model)
	return nil
}

// Done is closed when the read loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.wsMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.wsMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// ConfigureSession sends session.update with the registered tools.
func (c *Client) ConfigureSession(cfg SessionConfig) error {
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if len(cfg.Modalities) == 0 {
		cfg.Modalities = []string{"text", "audio"}
	}

	tools := c.Tools()
	apiTools := make([]map[string]interface{}, len(tools))
	for i, tool := range tools {
		required := tool.Required
		if required == nil {
			required = []string{}
		}
		apiTools[i] = map[string]interface{}{
			"type":        "function",
			"name":        tool.Name,
			"description": tool.Description,
			"parameters": map[string]interface{}{
				"type":       "object",
				"properties": tool.Parameters,
				"required":   required,
			},
		}
	}

	session := map[string]interface{}{
		"modalities":          cfg.Modalities,
		"instructions":        cfg.Instructions,
		"voice":               cfg.Voice,
		"input_audio_format":  "pcm16",
		"output_audio_format": "pcm16",
		"input_audio_transcription": map[string]interface{}{
			"model": "whisper-1",
		},
		"turn_detection": map[string]interface{}{
			"type":                "server_vad",
			"threshold":           0.5,
			"prefix_padding_ms":   300,
			"silence_duration_ms": 500,
		},
		"tools":       apiTools,
		"tool_choice": "auto",
	}
	if cfg.Temperature > 0 {
		session["temperature"] = cfg.Temperature
	}

	return c.send(map[string]interface{}{
		"type":    "session.update",
		"session": session,
	})
}

// SendAudio appends PCM16 audio to the input buffer.
func (c *Client) SendAudio(pcm16 []byte) error {
	return c.send(map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm16),
	})
}

// SendText adds a user message and requests a response.
func (c *Client) SendText(text string) error {
	err := c.send(map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type": "message",
			"role": "user",
			"content": []map[string]interface{}{
				{"type": "input_text", "text": text},
			},
		},
	})
	if err != nil {
		return err
	}
	return c.send(map[string]interface{}{"type": "response.create"})
}

// CancelResponse interrupts the current response.
func (c *Client) CancelResponse() error {
	return c.send(map[string]interface{}{"type": "response.cancel"})
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wsMu.Lock()
	if c.ws != nil {
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.ws.Close()
	}
	c.wsMu.Unlock()
}

func (c *Client) handleMessages() {
	defer close(c.done)
	defer c.connected.Store(false)

	for {
		c.ws.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Error("read failed", "error", err)
				if c.OnError != nil {
					c.OnError(err)
				}
			}
			return
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Warn("undecodable event", "error", err)
			continue
		}

		msgType, _ := msg["type"].(string)
		switch msgType {
		case "session.created":
			c.ready.Store(true)
			if c.OnSessionCreated != nil {
				c.OnSessionCreated()
			}

		case "conversation.item.input_audio_transcription.completed":
			if transcript, ok := msg["transcript"].(string); ok && c.OnTranscript != nil {
				c.OnTranscript(transcript, true)
			}

		case "response.audio.delta":
			if delta, ok := msg["delta"].(string); ok && c.OnAudioDelta != nil {
				c.OnAudioDelta(delta)
			}

		case "response.audio_transcript.delta":
			if delta, ok := msg["delta"].(string); ok && c.OnTranscript != nil {
				c.OnTranscript(delta, false)
			}

		case "response.function_call_arguments.done":
			c.handleFunctionCall(msg)

		case "error":
			errMsg := "unknown error"
			if errData, ok := msg["error"].(map[string]interface{}); ok {
				if m, ok := errData["message"].(string); ok {
					errMsg = m
				}
			}
			c.logger.Error("api error", "message", errMsg)
			if c.OnError != nil {
				c.OnError(fmt.Errorf("realtime: api error: %s", errMsg))
			}
		}
	}
}

// handleFunctionCall runs the tool and returns its output to the model.
func (c *Client) handleFunctionCall(msg map[string]interface{}) {
	name, _ := msg["name"].(string)
	callID, _ := msg["call_id"].(string)
	argsStr, _ := msg["arguments"].(string)

	args := map[string]interface{}{}
	if argsStr != "" {
		if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
			c.logger.Warn("bad tool arguments", "tool", name, "error", err)
		}
	}

	c.logger.Info("tool called", "tool", name, "args", argsStr)
	ctx, cancel := context.WithTimeout(c.ctx, c.toolTimeout)
	result, err := c.Invoke(ctx, name, args)
	cancel()
	if err != nil {
		c.logger.Warn("tool failed", "tool", name, "error", err)
		result = fmt.Sprintf("Error: %v", err)
	}
	if c.OnToolCall != nil {
		c.OnToolCall(name, args, result, err)
	}

	if err := c.send(map[string]interface{}{
		"type": "conversation.item.create",
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  result,
		},
	}); err != nil {
		c.logger.Error("send tool output", "tool", name, "error", err)
		return
	}
	if err := c.send(map[string]interface{}{"type": "response.create"}); err != nil {
		c.logger.Error("request response", "error", err)
	}
}

// Invoke runs a registered tool directly.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	c.toolsMu.RLock()
	tool, ok := c.toolsMap[name]
	c.toolsMu.RUnlock()
	if !ok || tool.Handler == nil {
		return "", fmt.Errorf("realtime: unknown tool %q", name)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return tool.Handler(ctx, args)
}

// send writes one client event, stamping it with a fresh event_id.
func (c *Client) send(event map[string]interface{}) error {
	if c.closed.Load() || !c.connected.Load() {
		return ErrNotConnected
	}
	event["event_id"] = "evt_" + uuid.NewString()

	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(event)
}

// IsConnected reports whether the session is open.
func (c *Client) IsConnected() bool {
	return c.connected.Load() && !c.closed.Load()
}

// IsReady reports whether session.created was received.
func (c *Client) IsReady() bool {
	return c.ready.Load()
}
