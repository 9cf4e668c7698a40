// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "researchdesk.toml"

// Config represents the researchdesk configuration.
type Config struct {
	LLM        LLMConfig        `toml:"llm" yaml:"llm"`
	SmallLLM   LLMConfig        `toml:"small_llm" yaml:"small_llm"` // Summarizer for scraped pages
	Assistants AssistantsConfig `toml:"assistants" yaml:"assistants"`
	Chat       ChatConfig       `toml:"chat" yaml:"chat"`
	Proxy      ProxyConfig      `toml:"proxy" yaml:"proxy"`
	UI         UIConfig         `toml:"ui" yaml:"ui"`
	Tools      ToolsConfig      `toml:"tools" yaml:"tools"`
	Web        WebConfig        `toml:"web" yaml:"web"`
	Storage    StorageConfig    `toml:"storage" yaml:"storage"`
	NATS       NATSConfig       `toml:"nats" yaml:"nats"`
	Telemetry  TelemetryConfig  `toml:"telemetry" yaml:"telemetry"`
	Log        LogConfig        `toml:"log" yaml:"log"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	ConfigList   string `toml:"config_list" yaml:"config_list"` // Env var or file holding the model list
	Provider     string `toml:"provider" yaml:"provider"`
	Model        string `toml:"model" yaml:"model"`
	APIKeyEnv    string `toml:"api_key_env" yaml:"api_key_env"`
	MaxTokens    int    `toml:"max_tokens" yaml:"max_tokens"`
	BaseURL      string `toml:"base_url" yaml:"base_url"`
	MaxRetries   int    `toml:"max_retries" yaml:"max_retries"`
	RetryBackoff string `toml:"retry_backoff" yaml:"retry_backoff"` // Max backoff duration, e.g. "60s"
}

// AssistantsConfig identifies the hosted assistants.
type AssistantsConfig struct {
	MarketResearcher string `toml:"market_researcher" yaml:"market_researcher"`
	ResearchManager  string `toml:"research_manager" yaml:"research_manager"`
	ResearchDirector string `toml:"research_director" yaml:"research_director"`
	APIKeyEnv        string `toml:"api_key_env" yaml:"api_key_env"`
	BaseURL          string `toml:"base_url" yaml:"base_url"`
	PollInterval     int    `toml:"poll_interval" yaml:"poll_interval"` // milliseconds
	RunTimeout       int    `toml:"run_timeout" yaml:"run_timeout"`     // seconds
}

// ChatConfig controls the group chat built for every user message.
type ChatConfig struct {
	MaxRound         int    `toml:"max_round" yaml:"max_round"`
	SpeakerSelection string `toml:"speaker_selection" yaml:"speaker_selection"` // auto | round_robin
	TaskTemplate     string `toml:"task_template" yaml:"task_template"`
	ManagerName      string `toml:"manager_name" yaml:"manager_name"`
}

// ProxyConfig configures the human proxy participant.
type ProxyConfig struct {
	HumanInputMode          string `toml:"human_input_mode" yaml:"human_input_mode"` // ALWAYS | TERMINATE | NEVER
	MaxConsecutiveAutoReply int    `toml:"max_consecutive_auto_reply" yaml:"max_consecutive_auto_reply"`
	WorkDir                 string `toml:"work_dir" yaml:"work_dir"`
	UseDocker               bool   `toml:"use_docker" yaml:"use_docker"`
	ExecTimeout             int    `toml:"exec_timeout" yaml:"exec_timeout"` // seconds
}

// UIConfig contains front-end settings shared by the terminal and browser UIs.
type UIConfig struct {
	InputTimeout      int      `toml:"input_timeout" yaml:"input_timeout"`             // seconds per free-text prompt
	MaxPromptAttempts int      `toml:"max_prompt_attempts" yaml:"max_prompt_attempts"` // 0 = unbounded
	MaxPromptWait     int      `toml:"max_prompt_wait" yaml:"max_prompt_wait"`         // seconds, 0 = unbounded
	Welcome           string   `toml:"welcome" yaml:"welcome"`
	Avatars           []Avatar `toml:"avatars" yaml:"avatars"`
}

// Avatar maps an author label to an image path.
type Avatar struct {
	Name string `toml:"name" yaml:"name"`
	Path string `toml:"path" yaml:"path"`
}

// ToolsConfig contains settings for the research tools.
type ToolsConfig struct {
	SerperAPIKeyEnv      string  `toml:"serper_api_key_env" yaml:"serper_api_key_env"`
	BrowserlessAPIKeyEnv string  `toml:"browserless_api_key_env" yaml:"browserless_api_key_env"`
	AirtableAPIKeyEnv    string  `toml:"airtable_api_key_env" yaml:"airtable_api_key_env"`
	ScrapeCacheSize      int     `toml:"scrape_cache_size" yaml:"scrape_cache_size"`
	ScrapeCacheTTL       int     `toml:"scrape_cache_ttl" yaml:"scrape_cache_ttl"` // seconds
	SummarizeOver        int     `toml:"summarize_over" yaml:"summarize_over"`     // characters
	AirtableRate         float64 `toml:"airtable_rate" yaml:"airtable_rate"`       // requests per second
	Timeout              int     `toml:"timeout" yaml:"timeout"`                   // seconds per HTTP call
}

// WebConfig contains browser UI settings.
type WebConfig struct {
	Addr            string   `toml:"addr" yaml:"addr"`
	AllowedOrigins  []string `toml:"allowed_origins" yaml:"allowed_origins"`
	IconDir         string   `toml:"icon_dir" yaml:"icon_dir"`
	TailnetHostname string   `toml:"tailnet_hostname" yaml:"tailnet_hostname"` // Serve on a tailnet instead of Addr
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	Path        string `toml:"path" yaml:"path"`
	Transcripts bool   `toml:"transcripts" yaml:"transcripts"`
}

// NATSConfig configures transcript fan-out.
type NATSConfig struct {
	URL     string `toml:"url" yaml:"url"`
	Subject string `toml:"subject" yaml:"subject"`
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Endpoint string `toml:"endpoint" yaml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol" yaml:"protocol"` // grpc (default) or http
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// DefaultTaskTemplate frames the user's text as the opening group chat message.
const DefaultTaskTemplate = "Starting agents on task: %s..."

// DefaultWelcome is the opening message of every session.
const DefaultWelcome = `Welcome to the Market Research bot developed for LLMops3 Final Project !!!
- Provide the user message with user queries filled in an Airtable
- The ` + "`Research Director`" + ` bot will be using the ` + "`Airtable`" + ` Link to get the list of research objectives
- Then ` + "`Research Manager`" + ` bot will delegates and evalutes task from the ` + "`Market Research`" + `
- The ` + "`Market Research`" + ` bot uses various tools like ` + "`DuckDuckGo Search`, `Browserless API`" + ` scraping and ` + "`Summarization`" + ` chain to do market research
`

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			ConfigList: "OAI_CONFIG_LIST",
			MaxTokens:  4096,
		},
		Assistants: AssistantsConfig{
			MarketResearcher: "asst_s8wJx1VWOgJOBZP3DCC23V3p",
			ResearchManager:  "asst_o6htPuVLrh9Pw1CBtaRYK3pQ",
			ResearchDirector: "asst_RqSh4EkzVpsInu1V3FTiF7yq",
			PollInterval:     1000,
			RunTimeout:       600,
		},
		Chat: ChatConfig{
			MaxRound:         15,
			SpeakerSelection: "auto",
			TaskTemplate:     DefaultTaskTemplate,
			ManagerName:      "chat_manager",
		},
		Proxy: ProxyConfig{
			HumanInputMode:          "ALWAYS",
			MaxConsecutiveAutoReply: 1,
			WorkDir:                 "workspace",
			ExecTimeout:             60,
		},
		UI: UIConfig{
			InputTimeout: 60,
			Welcome:      DefaultWelcome,
			Avatars: []Avatar{
				{Name: "Chatbot", Path: "icon/chainlit.png"},
				{Name: "AssistantAgent", Path: "icon/chainlit.png"},
				{Name: "GPTAssistantAgent", Path: "icon/openai.png"},
				{Name: "User", Path: "icon/avatar.png"},
				{Name: "UserProxyAgent", Path: "icon/avatar.png"},
			},
		},
		Tools: ToolsConfig{
			SerperAPIKeyEnv:      "SERPER_API_KEY",
			BrowserlessAPIKeyEnv: "BROWSERLESS_API_KEY",
			AirtableAPIKeyEnv:    "AIRTABLE_API_KEY",
			ScrapeCacheSize:      128,
			ScrapeCacheTTL:       900,
			SummarizeOver:        10000,
			AirtableRate:         5,
			Timeout:              60,
		},
		Web: WebConfig{
			Addr:    ":8000",
			IconDir: "icon",
		},
		Storage: StorageConfig{
			Path:        "~/.local/researchdesk",
			Transcripts: true,
		},
		NATS: NATSConfig{
			Subject: "researchdesk.transcripts",
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file, or YAML when the extension says so.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads researchdesk.toml from the current directory, falling
// back to defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	path := filepath.Join(cwd, DefaultFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// Validate checks values that would otherwise fail deep inside a conversation.
func (c *Config) Validate() error {
	if c.Chat.MaxRound <= 0 {
		return fmt.Errorf("chat.max_round must be positive, got %d", c.Chat.MaxRound)
	}
	switch c.Chat.SpeakerSelection {
	case "auto", "round_robin":
	default:
		return fmt.Errorf("chat.speaker_selection must be auto or round_robin, got %q", c.Chat.SpeakerSelection)
	}
	if !strings.Contains(c.Chat.TaskTemplate, "%s") {
		return fmt.Errorf("chat.task_template must contain %%s")
	}
	switch strings.ToUpper(c.Proxy.HumanInputMode) {
	case "ALWAYS", "TERMINATE", "NEVER":
	default:
		return fmt.Errorf("proxy.human_input_mode must be ALWAYS, TERMINATE or NEVER, got %q", c.Proxy.HumanInputMode)
	}
	if c.Proxy.UseDocker {
		return fmt.Errorf("proxy.use_docker is not supported")
	}
	if c.UI.InputTimeout <= 0 {
		return fmt.Errorf("ui.input_timeout must be positive")
	}
	return nil
}

// InputTimeout returns the per-prompt timeout for free-text questions.
func (c *Config) InputTimeout() time.Duration {
	return time.Duration(c.UI.InputTimeout) * time.Second
}

// MaxPromptWait returns the overall deadline for one human answer, zero when unbounded.
func (c *Config) MaxPromptWait() time.Duration {
	return time.Duration(c.UI.MaxPromptWait) * time.Second
}

// PollInterval returns how often hosted assistant runs are polled.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Assistants.PollInterval) * time.Millisecond
}

// RunTimeout bounds one hosted assistant run.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Assistants.RunTimeout) * time.Second
}

// ExecTimeout bounds one code block executed by the proxy.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.Proxy.ExecTimeout) * time.Second
}

// ToolTimeout bounds one outbound HTTP call made by a tool.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Tools.Timeout) * time.Second
}

// ScrapeCacheTTL is how long scraped pages are reused.
func (c *Config) ScrapeCacheTTL() time.Duration {
	return time.Duration(c.Tools.ScrapeCacheTTL) * time.Second
}

// StoragePath returns the storage directory with ~ expanded.
func (c *Config) StoragePath() string {
	p := c.Storage.Path
	if p == "" {
		p = "~/.local/researchdesk"
	}
	if strings.HasPrefix(p, "~") {
		home, _ := os.UserHomeDir()
		p = filepath.Join(home, p[1:])
	}
	return p
}

// TranscriptDir returns where session transcripts are written.
func (c *Config) TranscriptDir() string {
	return filepath.Join(c.StoragePath(), "transcripts")
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c LLMConfig) GetAPIKey() string {
	envVar := c.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}

// Env returns the value of the environment variable named by key, or "".
func Env(key string) string {
	if key == "" {
		return ""
	}
	return os.Getenv(key)
}
