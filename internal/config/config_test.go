package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Room != DefaultRoom {
		t.Errorf("Room = %q, want %q", cfg.Room, DefaultRoom)
	}
	if cfg.AgentName != DefaultAgentName {
		t.Errorf("AgentName = %q, want %q", cfg.AgentName, DefaultAgentName)
	}
	if cfg.MaintenanceEmail != DefaultMaintenanceEmail {
		t.Errorf("MaintenanceEmail = %q", cfg.MaintenanceEmail)
	}
	if cfg.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Location == nil || cfg.Location.String() != DefaultTimezone {
		t.Errorf("Location = %v, want %s", cfg.Location, DefaultTimezone)
	}
	if cfg.Google.CredentialsPath != filepath.Join(DefaultSecretsDir, "credentials.json") {
		t.Errorf("CredentialsPath = %q", cfg.Google.CredentialsPath)
	}
	if cfg.Google.RedirectURL != "http://localhost:8080/api/google/callback" {
		t.Errorf("RedirectURL = %q", cfg.Google.RedirectURL)
	}
	if cfg.Realtime.Voice != DefaultVoice || cfg.Realtime.Temperature != DefaultTemperature {
		t.Errorf("Realtime = %+v", cfg.Realtime)
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Errorf("AllowedOrigins = %v, want empty", cfg.AllowedOrigins)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"LIVEKIT_URL":                    "wss://example.livekit.cloud",
		"LIVEKIT_API_KEY":                "key",
		"LIVEKIT_API_SECRET":             "secret",
		"LIVEKIT_ROOM":                   "atelier",
		"ALLOWED_ORIGINS":                "https://a.example, ,https://b.example",
		"ORION_SECRETS_DIR":              "/etc/orion",
		"MAINTENANCE_CALENDAR_ID":        "maint@group.calendar.google.com",
		"PRODUCTION_LIGNE_1_CALENDAR_ID": "l1@group.calendar.google.com",
		"EMAIL_MAINTENANCE":              "team@example.com",
		"STRICT_URGENCY":                 "true",
		"SLOT_MAX_ATTEMPTS":              "5",
		"OPENAI_TEMPERATURE":             "0.8",
		"TIMEZONE":                       "UTC",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := cfg.ValidateLiveKit(); err != nil {
		t.Errorf("ValidateLiveKit() = %v", err)
	}
	if cfg.Room != "atelier" {
		t.Errorf("Room = %q", cfg.Room)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.Google.TokenPath != filepath.Join("/etc/orion", "token.json") {
		t.Errorf("TokenPath = %q", cfg.Google.TokenPath)
	}
	if cfg.Calendars.Line("1") != "l1@group.calendar.google.com" {
		t.Errorf("Line(1) = %q", cfg.Calendars.Line("1"))
	}
	if cfg.Calendars.Line("3") != "" {
		t.Errorf("Line(3) should be empty")
	}
	if !cfg.StrictUrgency || cfg.MaxAttempts != 5 || cfg.Realtime.Temperature != 0.8 {
		t.Errorf("unexpected parsed values: %+v", cfg)
	}
	if cfg.Location.String() != "UTC" {
		t.Errorf("Location = %v", cfg.Location)
	}
}

func TestFromEnvInvalidValues(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{
		"SLOT_MAX_ATTEMPTS":  "0",
		"OPENAI_TEMPERATURE": "warm",
		"TIMEZONE":           "Mars/Olympus",
	}))
	if err == nil {
		t.Fatal("expected error for invalid values")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if !errors.Is(cfg.ValidateLiveKit(), ErrMissingLiveKit) {
		t.Error("expected ErrMissingLiveKit")
	}
	if !errors.Is(cfg.ValidateAgent(), ErrMissingOpenAI) {
		t.Error("expected ErrMissingOpenAI")
	}
	cfg.Realtime.APIKey = "sk-test"
	if err := cfg.ValidateAgent(); err != nil {
		t.Errorf("ValidateAgent() = %v", err)
	}
}

func TestCalendarAliases(t *testing.T) {
	c := Calendars{Maintenance: "m@x", Line2: "l2@x"}
	aliases := c.Aliases()

	if aliases["maintenance"] != "m@x" {
		t.Errorf("maintenance alias = %q", aliases["maintenance"])
	}
	if aliases["maintenance_calendar_id"] != "m@x" {
		t.Errorf("env-name alias = %q", aliases["maintenance_calendar_id"])
	}
	if _, ok := aliases["production_ligne_1"]; ok {
		t.Error("unset calendar should not have an alias")
	}
	if aliases["production_ligne_2"] != "l2@x" {
		t.Errorf("line 2 alias = %q", aliases["production_ligne_2"])
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orion.env")
	if err := os.WriteFile(path, []byte("ORION_TEST_VALUE=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ORION_ENV_FILE", path)
	t.Setenv("ORION_TEST_VALUE", "")
	os.Unsetenv("ORION_TEST_VALUE")

	got, err := LoadDotEnv()
	if err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got != path {
		t.Errorf("LoadDotEnv() = %q, want %q", got, path)
	}
	if v := os.Getenv("ORION_TEST_VALUE"); v != "from-file" {
		t.Errorf("ORION_TEST_VALUE = %q", v)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	t.Setenv("ORION_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))

	got, err := LoadDotEnv()
	if err != nil || got != "" {
		t.Errorf("LoadDotEnv() = %q, %v; want empty, nil", got, err)
	}
}

func TestSetDashboardPort(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{"DASHBOARD_PORT": "8081"}))
	if err != nil {
		t.Fatal(err)
	}
	cfg.SetDashboardPort("9000")
	if cfg.DashboardPort != "9000" {
		t.Errorf("DashboardPort = %q", cfg.DashboardPort)
	}
	if want := "http://localhost:9000/api/google/callback"; cfg.Google.RedirectURL != want {
		t.Errorf("RedirectURL = %q, want %q", cfg.Google.RedirectURL, want)
	}

	explicit := "https://orion.example.com/api/google/callback"
	cfg, err = FromEnv(envMap(map[string]string{"GOOGLE_REDIRECT_URL": explicit}))
	if err != nil {
		t.Fatal(err)
	}
	cfg.SetDashboardPort("9000")
	if cfg.Google.RedirectURL != explicit {
		t.Errorf("RedirectURL = %q, want the explicit %q", cfg.Google.RedirectURL, explicit)
	}
}
