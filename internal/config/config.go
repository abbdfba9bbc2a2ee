package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the config reads (TOOLCHAT_MODEL, ...).
const EnvPrefix = "TOOLCHAT"

// Providers accepted by the provider key.
var Providers = []string{"gemini", "openrouter", "anthropic"}

// providerKeyVars are the conventional API key variables per provider, tried in order
// when api_key is unset.
var providerKeyVars = map[string][]string{
	"gemini":     {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
}

// Config holds runtime configuration. It is built once at startup and not changed after.
type Config struct {
	Provider string
	// Model is the provider model id; empty picks the provider default.
	Model  string
	APIKey string
	// WorkspaceDir anchors relative paths given to the file tools.
	WorkspaceDir   string
	MaxToolRounds  int
	RequestTimeout time.Duration
	Search         SearchConfig
	// ToolOutputMaxRunes caps tool output length (0 = no truncation).
	ToolOutputMaxRunes int
	// JournalPath is the sqlite tool-call journal; empty disables it.
	JournalPath string
	LogLevel    string
}

type SearchConfig struct {
	URL       string
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// HasAPIKey reports whether AI features can be enabled.
func (c *Config) HasAPIKey() bool { return c.APIKey != "" }

// DefaultJournalPath returns <user config dir>/toolchat/journal.db, or "" when the
// platform has no config dir.
func DefaultJournalPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "toolchat", "journal.db")
}

// keys maps config keys to the flag that can set them ("" for env/file only).
var keys = []struct {
	key, flag string
}{
	{"provider", "provider"},
	{"model", "model"},
	{"api_key", ""},
	{"workspace_dir", "workspace"},
	{"max_tool_rounds", "max-tool-rounds"},
	{"request_timeout", "request-timeout"},
	{"search.url", "search-url"},
	{"search.timeout", ""},
	{"search.cache_size", ""},
	{"search.cache_ttl", ""},
	{"tool_output_max_runes", "tool-output-max-runes"},
	{"journal_path", "journal"},
	{"log_level", "log-level"},
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper) {
	cwd, _ := os.Getwd()
	v.SetDefault("provider", "gemini")
	v.SetDefault("model", "")
	v.SetDefault("api_key", "")
	v.SetDefault("workspace_dir", cwd)
	v.SetDefault("max_tool_rounds", 10)
	v.SetDefault("request_timeout", 2*time.Minute)
	v.SetDefault("search.url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.timeout", 15*time.Second)
	v.SetDefault("search.cache_size", 64)
	v.SetDefault("search.cache_ttl", 10*time.Minute)
	v.SetDefault("tool_output_max_runes", 20000)
	v.SetDefault("journal_path", DefaultJournalPath())
	v.SetDefault("log_level", "warn")
}

// RegisterFlags defines the command-line flags Load understands.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("env-file", ".env", "dotenv file to read (missing is fine)")
	fs.String("provider", "", "model provider: "+strings.Join(Providers, ", "))
	fs.String("model", "", "model id (provider default when empty)")
	fs.String("workspace", "", "directory relative file paths resolve against")
	fs.Int("max-tool-rounds", 0, "tool-call round trips allowed per prompt")
	fs.Duration("request-timeout", 0, "timeout for each model call")
	fs.String("search-url", "", "search engine HTML endpoint")
	fs.Int("tool-output-max-runes", 0, "truncate tool output beyond this many runes (0 = off)")
	fs.String("journal", "", "sqlite tool-call journal path")
	fs.String("log-level", "", "log level: debug, info, warn, error, disabled")
}

// Load parses args into fs and resolves configuration. Precedence is
// flags, then environment, then the env file, then defaults.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	if fs.Lookup("env-file") == nil {
		RegisterFlags(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	envFile, _ := fs.GetString("env-file")
	fileVals, err := readEnvFile(envFile)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if val, ok := fileVals[strings.ToLower(envName(k.key))]; ok {
			v.SetDefault(k.key, val)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, k := range keys {
		if k.flag == "" {
			continue
		}
		if f := fs.Lookup(k.flag); f != nil {
			if err := v.BindPFlag(k.key, f); err != nil {
				return nil, fmt.Errorf("config: bind %s: %w", k.flag, err)
			}
		}
	}

	cfg := &Config{
		Provider:       strings.ToLower(strings.TrimSpace(v.GetString("provider"))),
		Model:          v.GetString("model"),
		APIKey:         v.GetString("api_key"),
		WorkspaceDir:   v.GetString("workspace_dir"),
		MaxToolRounds:  v.GetInt("max_tool_rounds"),
		RequestTimeout: v.GetDuration("request_timeout"),
		Search: SearchConfig{
			URL:       v.GetString("search.url"),
			Timeout:   v.GetDuration("search.timeout"),
			CacheSize: v.GetInt("search.cache_size"),
			CacheTTL:  v.GetDuration("search.cache_ttl"),
		},
		ToolOutputMaxRunes: v.GetInt("tool_output_max_runes"),
		JournalPath:        v.GetString("journal_path"),
		LogLevel:           v.GetString("log_level"),
	}
	if cfg.APIKey == "" {
		cfg.APIKey = providerKey(cfg.Provider, fileVals)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(cfg.WorkspaceDir); err == nil {
		cfg.WorkspaceDir = abs
	}
	return cfg, nil
}

func providerKey(provider string, fileVals map[string]string) string {
	for _, name := range providerKeyVars[provider] {
		if val := os.Getenv(name); val != "" {
			return val
		}
		if val := fileVals[strings.ToLower(name)]; val != "" {
			return val
		}
	}
	return ""
}

func (c *Config) validate() error {
	if _, ok := providerKeyVars[c.Provider]; !ok {
		return fmt.Errorf("config: unknown provider %q (want one of %s)", c.Provider, strings.Join(Providers, ", "))
	}
	if c.MaxToolRounds < 1 {
		return fmt.Errorf("config: max_tool_rounds must be at least 1, got %d", c.MaxToolRounds)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.ToolOutputMaxRunes < 0 {
		return fmt.Errorf("config: tool_output_max_runes must not be negative")
	}
	return nil
}

// readEnvFile loads a dotenv file into lowercased key/value pairs.
func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	out := make(map[string]string, len(v.AllKeys()))
	for _, k := range v.AllKeys() {
		out[k] = v.GetString(k)
	}
	return out, nil
}
