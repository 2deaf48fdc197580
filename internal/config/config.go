// Package config loads the ondeath daemon configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sigs.k8s.io/yaml"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Console source modes.
const (
	ConsoleExec = "exec"
	ConsoleTail = "tail"
)

// Store backends.
const (
	StoreFile = "file"
	StoreNATS = "nats"
)

// Config is the daemon configuration. Durations are in milliseconds.
type Config struct {
	// PollRate is the poll interval. Zero means 100ms.
	PollRate        int `json:"poll-rate"`
	FetchTimeout    int `json:"fetch-timeout"`
	IdleTimeout     int `json:"idle-timeout"`
	Retention       int `json:"retention"`
	JanitorInterval int `json:"janitor-interval"`
	RosterInterval  int `json:"roster-interval"`
	KillColumn      int `json:"kill-column"`

	Console   ConsoleConfig   `json:"console"`
	Store     StoreConfig     `json:"store"`
	NATS      NATSConfig      `json:"nats"`
	HTTP      HTTPConfig      `json:"http"`
	RateLimit RateLimitConfig `json:"rate-limit"`
	Plugins   []PluginConfig  `json:"plugins,omitempty"`
}

// ConsoleConfig selects how the daemon reaches the server console.
type ConsoleConfig struct {
	// Mode is "exec" (run the server, use its stdio) or "tail" (follow a log
	// file, write commands to a FIFO).
	//
	// An exec-mode server is started in its own process group and is never
	// signalled by ondeath; on shutdown its stdin is closed and it is left
	// running, with a warning naming its pid. Its stdout stays a pipe into
	// ondeath, so a server that must keep its console after ondeath exits
	// belongs in tail mode.
	Mode     string   `json:"mode"`
	Command  []string `json:"command,omitempty"`
	Dir      string   `json:"dir,omitempty"`
	Log      string   `json:"log,omitempty"`
	Commands string   `json:"commands,omitempty"`
}

// StoreConfig selects where subscriber names persist.
type StoreConfig struct {
	Backend string `json:"backend"`
	Path    string `json:"path,omitempty"`
	Bucket  string `json:"bucket,omitempty"`
}

// NATSConfig configures the optional NATS connection.
type NATSConfig struct {
	URL   string `json:"url,omitempty"`
	Token string `json:"token,omitempty"`
	// Prefix roots every subject: "<prefix>.subscribe", "<prefix>.<plugin>.<event>".
	Prefix string `json:"prefix"`
	// AutoRoute makes any plugin name resolvable over NATS.
	AutoRoute bool `json:"auto-route"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Address string `json:"address"`
}

// RateLimitConfig bounds deliveries per subscriber.
type RateLimitConfig struct {
	PerSecond float64 `json:"per-second"`
	Burst     int     `json:"burst"`
}

// PluginConfig declares one subscribable plugin and how to reach it.
type PluginConfig struct {
	Name    string         `json:"name"`
	Events  []string       `json:"events,omitempty"`
	Webhook *WebhookConfig `json:"webhook,omitempty"`
	NATS    *NATSTarget    `json:"nats,omitempty"`
}

// WebhookConfig is an HTTP POST target.
type WebhookConfig struct {
	URL                string `json:"url"`
	TimeoutSeconds     int    `json:"timeout-seconds,omitempty"`
	InsecureSkipVerify bool   `json:"insecure-skip-verify,omitempty"`
	AuthToken          string `json:"auth-token,omitempty"`
}

// NATSTarget is a NATS subject target. Empty Subject means "<prefix>.<name>".
type NATSTarget struct {
	Subject string `json:"subject,omitempty"`
}

// Default returns the defaults.
func Default() Config {
	return Config{
		PollRate:        100,
		FetchTimeout:    5000,
		IdleTimeout:     250,
		Retention:       60000,
		JanitorInterval: 60000,
		RosterInterval:  2000,
		KillColumn:      1,
		Console: ConsoleConfig{
			Mode: ConsoleExec,
		},
		Store: StoreConfig{
			Backend: StoreFile,
			Path:    "ondeath-store.yaml",
			Bucket:  "ondeath",
		},
		NATS: NATSConfig{
			Prefix: "ondeath",
		},
		HTTP: HTTPConfig{
			Address: ":8080",
		},
		RateLimit: RateLimitConfig{
			PerSecond: 50,
			Burst:     100,
		},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides file values from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("ONDEATH_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := getenv("ONDEATH_NATS_TOKEN"); v != "" {
		c.NATS.Token = v
	}
	if v := getenv("ONDEATH_WEBHOOK_AUTH_TOKEN"); v != "" {
		for i := range c.Plugins {
			if w := c.Plugins[i].Webhook; w != nil && w.AuthToken == "" {
				w.AuthToken = v
			}
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.PollRate < 0 {
		fail("poll-rate must not be negative, got %d", c.PollRate)
	}
	for name, v := range map[string]int{
		"fetch-timeout":    c.FetchTimeout,
		"idle-timeout":     c.IdleTimeout,
		"retention":        c.Retention,
		"janitor-interval": c.JanitorInterval,
		"roster-interval":  c.RosterInterval,
	} {
		if v <= 0 {
			fail("%s must be positive, got %d", name, v)
		}
	}
	if c.KillColumn < 0 {
		fail("kill-column must not be negative, got %d", c.KillColumn)
	}

	switch c.Console.Mode {
	case ConsoleExec:
		if len(c.Console.Command) == 0 {
			fail("console.command is required in exec mode")
		}
	case ConsoleTail:
		if c.Console.Log == "" || c.Console.Commands == "" {
			fail("console.log and console.commands are required in tail mode")
		}
	default:
		fail("console.mode must be %q or %q, got %q", ConsoleExec, ConsoleTail, c.Console.Mode)
	}

	switch c.Store.Backend {
	case StoreFile:
		if c.Store.Path == "" {
			fail("store.path is required for the file backend")
		}
	case StoreNATS:
		if c.NATS.URL == "" {
			fail("nats.url is required for the nats store backend")
		}
		if c.Store.Bucket == "" {
			fail("store.bucket is required for the nats backend")
		}
	default:
		fail("store.backend must be %q or %q, got %q", StoreFile, StoreNATS, c.Store.Backend)
	}

	if c.NATS.Prefix == "" || strings.ContainsAny(c.NATS.Prefix, " *>") {
		fail("nats.prefix must be a literal subject, got %q", c.NATS.Prefix)
	}
	if c.NATS.AutoRoute && c.NATS.URL == "" {
		fail("nats.auto-route needs nats.url")
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		fail("rate-limit per-second and burst must be positive")
	}

	seen := make(map[string]bool, len(c.Plugins))
	for i, p := range c.Plugins {
		switch {
		case p.Name == "":
			fail("plugins[%d]: name is required", i)
		case seen[p.Name]:
			fail("plugins[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		if (p.Webhook == nil) == (p.NATS == nil) {
			fail("plugins[%d] %q: exactly one of webhook or nats is required", i, p.Name)
		}
		if p.NATS != nil && c.NATS.URL == "" {
			fail("plugins[%d] %q: nats target needs nats.url", i, p.Name)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// UsesNATS reports whether a NATS connection is needed.
func (c *Config) UsesNATS() bool {
	return c.NATS.URL != ""
}

// PollInterval returns the poll interval, 100ms when unset.
func (c *Config) PollInterval() time.Duration {
	if c.PollRate <= 0 {
		return 100 * time.Millisecond
	}
	return ms(c.PollRate)
}

// FetchTimeoutDuration is the overall deadline of one console query.
func (c *Config) FetchTimeoutDuration() time.Duration { return ms(c.FetchTimeout) }

// IdleTimeoutDuration ends a query this long after its latest matching line.
func (c *Config) IdleTimeoutDuration() time.Duration { return ms(c.IdleTimeout) }

// RetentionDuration is how long a pawn may go unseen before the janitor evicts it.
func (c *Config) RetentionDuration() time.Duration { return ms(c.Retention) }

// JanitorIntervalDuration is the period of the janitor sweep.
func (c *Config) JanitorIntervalDuration() time.Duration { return ms(c.JanitorInterval) }

// RosterIntervalDuration is the period of the roster refresh.
func (c *Config) RosterIntervalDuration() time.Duration { return ms(c.RosterInterval) }

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
