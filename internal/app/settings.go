package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's env-driven configuration. Every field has a
// default; an env var only overrides it when present and parseable.
type Config struct {
	StateDir  string
	Namespace string // OJ_NAMESPACE override; empty means "derive from project dir"

	IPCTimeout     time.Duration
	ConnectTimeout time.Duration

	IdleGrace              time.Duration
	PromptPollInterval     time.Duration
	SessionLogPollInterval time.Duration
	WatcherPollInterval    time.Duration
	TimerTick              time.Duration

	KillSessionsOnShutdown bool
}

const (
	defaultIPCTimeout             = 5 * time.Second
	defaultConnectTimeout         = 2 * time.Second
	defaultIdleGrace              = 60 * time.Second
	defaultPromptPollInterval     = 200 * time.Millisecond
	defaultSessionLogPollInterval = 500 * time.Millisecond
	defaultWatcherPollInterval    = 500 * time.Millisecond
	defaultTimerTick              = 1 * time.Second
)

// stateDirOverrideMu and stateDirOverride implement a mutex-protected
// process-wide override for a CLI --state-dir flag, layered above the
// OJ_STATE_DIR/XDG_STATE_HOME env lookup in StateDir.
//
//nolint:gochecknoglobals // RWMutex override is intentional process-wide state
var (
	stateDirOverrideMu sync.RWMutex
	stateDirOverride   string
)

// SetStateDirOverride sets a process-wide state directory override.
// Intended for CLI flag support (e.g. --state-dir).
func SetStateDirOverride(path string) {
	stateDirOverrideMu.Lock()
	stateDirOverride = path
	stateDirOverrideMu.Unlock()
}

func getStateDirOverride() string {
	stateDirOverrideMu.RLock()
	v := stateDirOverride
	stateDirOverrideMu.RUnlock()
	return v
}

// fileConfig is the shape of the optional <state-dir>/config.yaml
// written on first run (see EnsureDefaultConfigFile). Every field is a
// pointer so an absent key in the file leaves the built-in default (or
// an env var, which still takes precedence) untouched.
type fileConfig struct {
	Namespace              *string `yaml:"namespace,omitempty"`
	IdleGrace              *string `yaml:"idle_grace,omitempty"`
	PromptPollInterval     *string `yaml:"prompt_poll_interval,omitempty"`
	SessionLogPollInterval *string `yaml:"session_log_poll_interval,omitempty"`
	WatcherPollInterval    *string `yaml:"watcher_poll_interval,omitempty"`
	TimerTick              *string `yaml:"timer_tick,omitempty"`
	KillSessionsOnShutdown *bool   `yaml:"kill_sessions_on_shutdown,omitempty"`
}

// EnsureDefaultConfigFile writes a commented config.yaml under dir if
// one doesn't already exist, so a first run leaves behind something a
// user can edit instead of having to discover every OJ_* env var.
func EnsureDefaultConfigFile(dir string) error {
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return nil
	}
	const defaultConfigYAML = `# oj daemon configuration. Every key here can also be set as an
# OJ_* environment variable, which takes precedence over this file.
# namespace: myproject
# idle_grace: 60s
# prompt_poll_interval: 200ms
# session_log_poll_interval: 500ms
# watcher_poll_interval: 500ms
# timer_tick: 1s
# kill_sessions_on_shutdown: false
`
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o640)
}

// loadFileConfig reads <dir>/config.yaml if present. A missing file is
// not an error; a malformed one is, since silently ignoring a typo'd
// config is how users lose an afternoon.
func loadFileConfig(dir string) (fileConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("reading config.yaml: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parsing config.yaml: %w", err)
	}
	return fc, nil
}

func applyFileDuration(d *time.Duration, v *string) {
	if v == nil {
		return
	}
	if parsed, err := time.ParseDuration(*v); err == nil {
		*d = parsed
	}
}

// LoadConfig resolves every setting in one pass, file values overriding
// built-in defaults and env vars overriding the file: the state
// directory (with its CLI-override/env/XDG/home precedence), the
// namespace override, and the core's timing knobs. It does not cache — callers
// that need a stable Config for a process lifetime should load once
// themselves and pass it down, same as the engine's other injected
// dependencies (clock, ids).
func LoadConfig() (Config, error) {
	cfg := Config{
		IPCTimeout:             defaultIPCTimeout,
		ConnectTimeout:         defaultConnectTimeout,
		IdleGrace:              defaultIdleGrace,
		PromptPollInterval:     defaultPromptPollInterval,
		SessionLogPollInterval: defaultSessionLogPollInterval,
		WatcherPollInterval:    defaultWatcherPollInterval,
		TimerTick:              defaultTimerTick,
	}

	dir := getStateDirOverride()
	if dir == "" {
		d, err := StateDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolving state dir: %w", err)
		}
		dir = d
	}
	cfg.StateDir = dir

	fc, err := loadFileConfig(dir)
	if err != nil {
		return Config{}, err
	}
	if fc.Namespace != nil {
		cfg.Namespace = *fc.Namespace
	}
	applyFileDuration(&cfg.IdleGrace, fc.IdleGrace)
	applyFileDuration(&cfg.PromptPollInterval, fc.PromptPollInterval)
	applyFileDuration(&cfg.SessionLogPollInterval, fc.SessionLogPollInterval)
	applyFileDuration(&cfg.WatcherPollInterval, fc.WatcherPollInterval)
	applyFileDuration(&cfg.TimerTick, fc.TimerTick)
	if fc.KillSessionsOnShutdown != nil {
		cfg.KillSessionsOnShutdown = *fc.KillSessionsOnShutdown
	}

	if v := os.Getenv("OJ_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	durationEnv(&cfg.IPCTimeout, "OJ_IPC_TIMEOUT")
	durationEnv(&cfg.ConnectTimeout, "OJ_CONNECT_TIMEOUT")
	durationEnv(&cfg.IdleGrace, "OJ_IDLE_GRACE")
	durationEnv(&cfg.PromptPollInterval, "OJ_PROMPT_POLL_INTERVAL")
	durationEnv(&cfg.SessionLogPollInterval, "OJ_SESSION_LOG_POLL_INTERVAL")
	durationEnv(&cfg.WatcherPollInterval, "OJ_WATCHER_POLL_INTERVAL")
	durationEnv(&cfg.TimerTick, "OJ_TIMER_TICK")

	if v := os.Getenv("OJ_KILL_SESSIONS_ON_SHUTDOWN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.KillSessionsOnShutdown = b
		}
	}

	return cfg, nil
}

// durationEnv overrides *d with the env var named key if it parses as a
// Go duration, leaving the default in place otherwise.
func durationEnv(d *time.Duration, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if parsed, err := time.ParseDuration(v); err == nil {
		*d = parsed
	}
}
