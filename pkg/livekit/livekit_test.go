package livekit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/livekit/protocol/livekit"
)

type jwtClaims struct {
	Issuer string `json:"iss"`
	Sub    string `json:"sub"`
	Name   string `json:"name"`
	Exp    int64  `json:"exp"`
	Video  struct {
		RoomJoin bool   `json:"roomJoin"`
		Room     string `json:"room"`
	} `json:"video"`
}

func decodeClaims(t *testing.T, token string) jwtClaims {
	t.Helper()
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("not a JWT: %q", token)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var c jwtClaims
	if err := json.Unmarshal(payload, &c); err != nil {
		t.Fatalf("unmarshal claims: %v", err)
	}
	return c
}

func TestIssuerToken(t *testing.T) {
	issuer, err := NewIssuer("devkey", "a-secret-long-enough-for-hmac-signing", 0)
	if err != nil {
		t.Fatal(err)
	}

	token, err := issuer.Token("identity", "mobile-app", "my-room")
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	c := decodeClaims(t, token)
	if c.Issuer != "devkey" || c.Sub != "identity" || c.Name != "mobile-app" {
		t.Errorf("claims = %+v", c)
	}
	if !c.Video.RoomJoin || c.Video.Room != "my-room" {
		t.Errorf("video grant = %+v", c.Video)
	}

	ttl := time.Until(time.Unix(c.Exp, 0))
	if ttl < DefaultTokenTTL-time.Minute || ttl > DefaultTokenTTL+time.Minute {
		t.Errorf("token valid for %v, want about %v", ttl, DefaultTokenTTL)
	}
}

func TestIssuerValidation(t *testing.T) {
	if _, err := NewIssuer("", "secret", 0); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("err = %v", err)
	}
	issuer, _ := NewIssuer("k", "s", time.Minute)
	if _, err := issuer.Token("id", "n", ""); !errors.Is(err, ErrMissingRoom) {
		t.Errorf("err = %v", err)
	}
}

type fakeDispatchClient struct {
	req *livekit.CreateAgentDispatchRequest
	err error
}

func (f *fakeDispatchClient) CreateDispatch(ctx context.Context, req *livekit.CreateAgentDispatchRequest) (*livekit.AgentDispatch, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &livekit.AgentDispatch{Id: "AD_123", AgentName: req.AgentName, Room: req.Room}, nil
}

func TestDispatch(t *testing.T) {
	fake := &fakeDispatchClient{}
	d := NewDispatcherWithClient(fake)

	id, err := d.Dispatch(context.Background(), "my-room", "orion-assistant")
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if id != "AD_123" {
		t.Errorf("id = %q", id)
	}
	if fake.req.AgentName != "orion-assistant" || fake.req.Room != "my-room" {
		t.Errorf("request = %+v", fake.req)
	}
}

func TestDispatchErrors(t *testing.T) {
	boom := errors.New("twirp error unavailable")
	d := NewDispatcherWithClient(&fakeDispatchClient{err: boom})

	if _, err := d.Dispatch(context.Background(), "room", "agent"); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if _, err := d.Dispatch(context.Background(), "", "agent"); !errors.Is(err, ErrMissingRoom) {
		t.Errorf("err = %v", err)
	}
	if _, err := d.Dispatch(context.Background(), "room", ""); !errors.Is(err, ErrMissingAgent) {
		t.Errorf("err = %v", err)
	}
	if _, err := NewDispatcher("", "k", "s"); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("err = %v", err)
	}
}

func TestHTTPURL(t *testing.T) {
	tests := map[string]string{
		"wss://orion.livekit.cloud": "https://orion.livekit.cloud",
		"ws://localhost:7880":       "http://localhost:7880",
		"https://already.http":      "https://already.http",
	}
	for in, want := range tests {
		if got := HTTPURL(in); got != want {
			t.Errorf("HTTPURL(%q) = %q, want %q", in, got, want)
		}
	}
}
