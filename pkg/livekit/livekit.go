// Package livekit issues room access tokens and dispatches the Orion
// agent into LiveKit rooms.
package livekit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/teslashibe/go-orion/internal/log"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 6 * time.Hour

// Sentinel errors.
var (
	ErrMissingCredentials = errors.New("livekit: API key and secret are required")
	ErrMissingRoom        = errors.New("livekit: room is required")
	ErrMissingAgent       = errors.New("livekit: agent name is required")
)

// Issuer signs participant tokens.
type Issuer struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

// NewIssuer creates an Issuer. ttl <= 0 uses DefaultTokenTTL.
func NewIssuer(apiKey, apiSecret string, ttl time.Duration) (*Issuer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, ErrMissingCredentials
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{apiKey: apiKey, apiSecret: apiSecret, ttl: ttl}, nil
}

// Token returns a JWT allowing identity to join room.
func (i *Issuer) Token(identity, name, room string) (string, error) {
	if room == "" {
		return "", ErrMissingRoom
	}
	at := auth.NewAccessToken(i.apiKey, i.apiSecret)
	at.SetVideoGrant(&auth.VideoGrant{
		RoomJoin: true,
		Room:     room,
	}).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(i.ttl)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("livekit: sign token: %w", err)
	}
	return token, nil
}

// DispatchClient creates agent dispatches. *lksdk.AgentDispatchClient
// satisfies it.
type DispatchClient interface {
	CreateDispatch(ctx context.Context, req *livekit.CreateAgentDispatchRequest) (*livekit.AgentDispatch, error)
}

// Dispatcher sends an agent into a room.
type Dispatcher struct {
	client DispatchClient
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher talking to the LiveKit server at
// url (ws:// and wss:// URLs are accepted).
func NewDispatcher(url, apiKey, apiSecret string) (*Dispatcher, error) {
	if url == "" || apiKey == "" || apiSecret == "" {
		return nil, ErrMissingCredentials
	}
	return NewDispatcherWithClient(lksdk.NewAgentDispatchServiceClient(HTTPURL(url), apiKey, apiSecret)), nil
}

// NewDispatcherWithClient wraps an existing dispatch client.
func NewDispatcherWithClient(client DispatchClient) *Dispatcher {
	return &Dispatcher{client: client, logger: log.Component("livekit")}
}

// Dispatch asks LiveKit to start agentName in room and returns the
// dispatch ID.
func (d *Dispatcher) Dispatch(ctx context.Context, room, agentName string) (string, error) {
	if room == "" {
		return "", ErrMissingRoom
	}
	if agentName == "" {
		return "", ErrMissingAgent
	}

	dispatch, err := d.client.CreateDispatch(ctx, &livekit.CreateAgentDispatchRequest{
		AgentName: agentName,
		Room:      room,
	})
	if err != nil {
		return "", fmt.Errorf("livekit: dispatch %s to %s: %w", agentName, room, err)
	}
	d.logger.Info("agent dispatched", "agent", agentName, "room", room, "dispatch", dispatch.GetId())
	return dispatch.GetId(), nil
}

// HTTPURL converts a ws(s) server URL to its http(s) API form.
func HTTPURL(url string) string {
	switch {
	case strings.HasPrefix(url, "wss://"):
		return "https://" + strings.TrimPrefix(url, "wss://")
	case strings.HasPrefix(url, "ws://"):
		return "http://" + strings.TrimPrefix(url, "ws://")
	}
	return url
}
