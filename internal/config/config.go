// Package config loads Orion configuration from a .env file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultRoom             = "my-room"
	DefaultAgentName        = "orion-assistant"
	DefaultPort             = "5000"
	DefaultDashboardPort    = "8080"
	DefaultMaintenanceEmail = "maintenance@orion.com"
	DefaultTimezone         = "Europe/Paris"
	DefaultRealtimeModel    = "gpt-4o-realtime-preview"
	DefaultVoice            = "marin"
	DefaultTemperature      = 0.6
	DefaultMaxAttempts      = 20
	DefaultSecretsDir       = "backend/secrets"
)

// Calendar aliases understood by the assistant, keyed to the environment
// variable that holds the calendar ID.
const (
	EnvMaintenanceCalendar = "MAINTENANCE_CALENDAR_ID"
	EnvLine1Calendar       = "PRODUCTION_LIGNE_1_CALENDAR_ID"
	EnvLine2Calendar       = "PRODUCTION_LIGNE_2_CALENDAR_ID"
)

// Sentinel errors.
var (
	ErrMissingLiveKit = errors.New("config: LIVEKIT_URL, LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required")
	ErrMissingOpenAI  = errors.New("config: OPENAI_API_KEY is required")
)

// LiveKit holds LiveKit server credentials.
type LiveKit struct {
	URL       string
	APIKey    string
	APISecret string
}

// Google holds Google OAuth file locations.
type Google struct {
	CredentialsPath string
	TokenPath       string
	RedirectURL     string
}

// Calendars holds the production calendar IDs.
type Calendars struct {
	Maintenance string
	Line1       string
	Line2       string
}

// Line returns the calendar ID for a production line ("1" or "2").
func (c Calendars) Line(line string) string {
	switch strings.TrimSpace(line) {
	case "1":
		return c.Line1
	case "2":
		return c.Line2
	}
	return ""
}

// Aliases returns the alias → ID table used to resolve spoken calendar
// names. Both short names and environment variable names are accepted.
func (c Calendars) Aliases() map[string]string {
	m := map[string]string{}
	add := func(id string, names ...string) {
		if id == "" {
			return
		}
		for _, n := range names {
			m[strings.ToLower(n)] = id
		}
	}
	add(c.Maintenance, "maintenance", EnvMaintenanceCalendar)
	add(c.Line1, "production_ligne_1", "ligne 1", "ligne_1", EnvLine1Calendar)
	add(c.Line2, "production_ligne_2", "ligne 2", "ligne_2", EnvLine2Calendar)
	return m
}

// Realtime holds the voice model settings.
type Realtime struct {
	APIKey      string
	URL         string // empty uses the public endpoint
	Model       string
	Voice       string
	Temperature float64
}

// Config is the full Orion configuration. Flag parsing is done in cmd/;
// this struct is data only.
type Config struct {
	Debug    bool
	LogLevel string

	LiveKit   LiveKit
	Room      string
	AgentName string

	Port           string
	DashboardPort  string
	AllowedOrigins []string

	Realtime Realtime

	SecretsDir string
	Google     Google

	Calendars        Calendars
	MaintenanceEmail string
	Location         *time.Location

	StrictUrgency bool
	MaxAttempts   int
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel:         "info",
		Room:             DefaultRoom,
		AgentName:        DefaultAgentName,
		Port:             DefaultPort,
		DashboardPort:    DefaultDashboardPort,
		SecretsDir:       DefaultSecretsDir,
		MaintenanceEmail: DefaultMaintenanceEmail,
		MaxAttempts:      DefaultMaxAttempts,
		Realtime: Realtime{
			Model:       DefaultRealtimeModel,
			Voice:       DefaultVoice,
			Temperature: DefaultTemperature,
		},
	}
}

// LoadDotEnv loads the first .env file found. ORION_ENV_FILE takes
// precedence over the default locations. A missing file is not an error;
// variables already set in the environment are never overwritten.
func LoadDotEnv() (string, error) {
	candidates := []string{"backend/.env", ".env"}
	if p := os.Getenv("ORION_ENV_FILE"); p != "" {
		candidates = []string{p}
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return p, fmt.Errorf("config: load %s: %w", p, err)
		}
		return p, nil
	}
	return "", nil
}

// Load reads the .env file, then the environment, on top of Default().
func Load() (Config, error) {
	if _, err := LoadDotEnv(); err != nil {
		return Config{}, err
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs []error

	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	cfg.LiveKit = LiveKit{
		URL:       getenv("LIVEKIT_URL"),
		APIKey:    getenv("LIVEKIT_API_KEY"),
		APISecret: getenv("LIVEKIT_API_SECRET"),
	}
	if v := getenv("LIVEKIT_ROOM"); v != "" {
		cfg.Room = v
	}
	if v := getenv("AGENT_NAME"); v != "" {
		cfg.AgentName = v
	}
	if v := getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := getenv("DASHBOARD_PORT"); v != "" {
		cfg.DashboardPort = v
	}
	cfg.AllowedOrigins = ParseOrigins(getenv("ALLOWED_ORIGINS"))

	cfg.Realtime.APIKey = getenv("OPENAI_API_KEY")
	cfg.Realtime.URL = getenv("OPENAI_REALTIME_URL")
	if v := getenv("OPENAI_REALTIME_MODEL"); v != "" {
		cfg.Realtime.Model = v
	}
	if v := getenv("OPENAI_VOICE"); v != "" {
		cfg.Realtime.Voice = v
	}
	if v := getenv("OPENAI_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: OPENAI_TEMPERATURE: %w", err))
		} else {
			cfg.Realtime.Temperature = f
		}
	}

	if v := getenv("ORION_SECRETS_DIR"); v != "" {
		cfg.SecretsDir = v
	}
	cfg.Google = Google{
		CredentialsPath: orDefault(getenv("GOOGLE_CREDENTIALS_PATH"), filepath.Join(cfg.SecretsDir, "credentials.json")),
		TokenPath:       orDefault(getenv("GOOGLE_TOKEN_PATH"), filepath.Join(cfg.SecretsDir, "token.json")),
		RedirectURL:     orDefault(getenv("GOOGLE_REDIRECT_URL"), CallbackURL(cfg.DashboardPort)),
	}

	cfg.Calendars = Calendars{
		Maintenance: getenv(EnvMaintenanceCalendar),
		Line1:       getenv(EnvLine1Calendar),
		Line2:       getenv(EnvLine2Calendar),
	}
	if v := getenv("EMAIL_MAINTENANCE"); v != "" {
		cfg.MaintenanceEmail = v
	}

	tz := orDefault(getenv("TIMEZONE"), DefaultTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		errs = append(errs, fmt.Errorf("config: TIMEZONE %q: %w", tz, err))
	} else {
		cfg.Location = loc
	}

	if v := getenv("STRICT_URGENCY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: STRICT_URGENCY: %w", err))
		}
		cfg.StrictUrgency = b
	}
	if v := getenv("SLOT_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("config: SLOT_MAX_ATTEMPTS: %w", err))
		case n <= 0:
			errs = append(errs, fmt.Errorf("config: SLOT_MAX_ATTEMPTS must be positive, got %d", n))
		default:
			cfg.MaxAttempts = n
		}
	}

	return cfg, errors.Join(errs...)
}

// ParseOrigins splits a comma-separated origin list, dropping blanks.
func ParseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// CallbackURL is the default OAuth redirect served by the dashboard on
// port.
func CallbackURL(port string) string {
	return "http://localhost:" + port + "/api/google/callback"
}

// SetDashboardPort changes the dashboard port. The OAuth redirect follows
// it unless GOOGLE_REDIRECT_URL set an explicit one.
func (c *Config) SetDashboardPort(port string) {
	if c.Google.RedirectURL == "" || c.Google.RedirectURL == CallbackURL(c.DashboardPort) {
		c.Google.RedirectURL = CallbackURL(port)
	}
	c.DashboardPort = port
}

// ValidateLiveKit checks the credentials needed by the token server and
// the dispatcher.
func (c Config) ValidateLiveKit() error {
	if c.LiveKit.URL == "" || c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "" {
		return ErrMissingLiveKit
	}
	return nil
}

// ValidateAgent checks what the voice agent needs to start.
func (c Config) ValidateAgent() error {
	if c.Realtime.APIKey == "" {
		return ErrMissingOpenAI
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
