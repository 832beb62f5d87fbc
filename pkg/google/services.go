package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"

	"github.com/teslashibe/go-orion/internal/httpc"
)

// Services bundles the Google API clients. It is built once and handed
// to the calendar, gmail and contacts clients.
type Services struct {
	Calendar *calendar.Service
	Gmail    *gmail.Service
	People   *people.Service
}

// NewServices builds all three services with the same client options.
func NewServices(ctx context.Context, opts ...option.ClientOption) (*Services, error) {
	cal, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: calendar service: %w", err)
	}
	gm, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: gmail service: %w", err)
	}
	pp, err := people.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: people service: %w", err)
	}
	return &Services{Calendar: cal, Gmail: gm, People: pp}, nil
}

// Services builds the API services authorized with the current token.
func (a *Auth) Services(ctx context.Context) (*Services, error) {
	ts, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	client := oauth2.NewClient(httpc.OAuthContext(ctx), ts)
	client.Timeout = httpc.DefaultTimeout
	return NewServices(ctx, option.WithHTTPClient(client))
}
