// Package main provides runtime setup shared by the chat front ends.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vinayprograms/agentkit/credentials"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/telemetry"

	"github.com/vinayprograms/researchdesk/internal/agentchat"
	"github.com/vinayprograms/researchdesk/internal/assistants"
	"github.com/vinayprograms/researchdesk/internal/chat"
	"github.com/vinayprograms/researchdesk/internal/config"
	"github.com/vinayprograms/researchdesk/internal/logging"
	"github.com/vinayprograms/researchdesk/internal/tools"
	"github.com/vinayprograms/researchdesk/internal/transcript"
)

// runtime holds the components shared by every chat session.
type runtime struct {
	cfg    *config.Config
	creds  *credentials.Credentials
	logger *logging.Logger

	provider llm.Provider
	smallLLM llm.Provider
	backend  agentchat.AssistantBackend
	toolbox  *tools.Toolbox
	telem    telemetry.Exporter
	sinks    []transcript.Sink

	closers []func()
}

func newRuntime(cfg *config.Config, creds *credentials.Credentials) *runtime {
	return &runtime{
		cfg:    cfg,
		creds:  creds,
		logger: logging.New().WithComponent("runtime"),
	}
}

// setup initializes all runtime components.
func (rt *runtime) setup(recordTranscripts bool) error {
	if err := os.MkdirAll(rt.cfg.StoragePath(), 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	if err := rt.createProvider(); err != nil {
		return err
	}
	rt.createSmallLLM()
	rt.createBackend()
	rt.createToolbox()
	if err := rt.setupTelemetry(); err != nil {
		return err
	}
	if recordTranscripts && rt.cfg.Storage.Transcripts {
		if err := rt.setupTranscripts(); err != nil {
			return err
		}
	}
	return nil
}

// createProvider builds one provider per model list entry; the chat uses
// them in order, moving on when one fails.
func (rt *runtime) createProvider() error {
	models, err := rt.cfg.Models()
	if err != nil {
		return err
	}

	var providers []llm.Provider
	for _, m := range models {
		p, err := rt.newProvider(m)
		if err != nil {
			rt.logger.Warn("skipping model", map[string]interface{}{"model": m.Model, "error": err.Error()})
			continue
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return fmt.Errorf("creating LLM provider: no usable model in %d configured", len(models))
	}

	rt.provider = agentchat.NewFallbackProvider(providers...)
	rt.logger.Info("LLM ready", map[string]interface{}{"models": len(providers), "first": models[0].Model})
	return nil
}

func (rt *runtime) newProvider(m config.ModelEntry) (llm.Provider, error) {
	provider := m.APIType
	if provider == "" || provider == "azure" {
		provider = llm.InferProviderFromModel(m.Model)
	}
	key := m.APIKey
	if key == "" {
		key = rt.apiKey(provider)
	}
	return llm.NewProvider(llm.ProviderConfig{
		Provider:    provider,
		Model:       m.Model,
		APIKey:      key,
		MaxTokens:   rt.cfg.LLM.MaxTokens,
		BaseURL:     m.BaseURL,
		RetryConfig: parseRetryConfig(rt.cfg.LLM.MaxRetries, rt.cfg.LLM.RetryBackoff),
	})
}

// createSmallLLM creates the summarizer for long scraped pages.
func (rt *runtime) createSmallLLM() {
	if rt.cfg.SmallLLM.Model == "" {
		return
	}
	smallProvider := rt.cfg.SmallLLM.Provider
	if smallProvider == "" {
		smallProvider = llm.InferProviderFromModel(rt.cfg.SmallLLM.Model)
	}
	var err error
	rt.smallLLM, err = llm.NewProvider(llm.ProviderConfig{
		Provider:  smallProvider,
		Model:     rt.cfg.SmallLLM.Model,
		APIKey:    rt.apiKey(smallProvider),
		MaxTokens: rt.cfg.SmallLLM.MaxTokens,
		BaseURL:   rt.cfg.SmallLLM.BaseURL,
	})
	if err != nil {
		rt.logger.Warn("small LLM disabled", map[string]interface{}{"error": err.Error()})
		rt.smallLLM = nil
	}
}

// createBackend connects the hosted assistants.
func (rt *runtime) createBackend() {
	key := config.Env(rt.cfg.Assistants.APIKeyEnv)
	if key == "" {
		key = rt.apiKey("openai")
	}
	if key == "" {
		rt.logger.Warn("no OpenAI key, hosted assistants will fail", nil)
	}
	rt.backend = assistants.New(assistants.Config{
		APIKey:     key,
		BaseURL:    rt.cfg.Assistants.BaseURL,
		MaxRetries: rt.cfg.LLM.MaxRetries,
	})
}

// createToolbox creates the research functions.
func (rt *runtime) createToolbox() {
	tc := rt.cfg.Tools
	rt.toolbox = tools.New(tools.Config{
		SerperKey:      config.Env(tc.SerperAPIKeyEnv),
		BrowserlessKey: config.Env(tc.BrowserlessAPIKeyEnv),
		AirtableKey:    config.Env(tc.AirtableAPIKeyEnv),
		CacheSize:      tc.ScrapeCacheSize,
		CacheTTL:       rt.cfg.ScrapeCacheTTL(),
		SummarizeOver:  tc.SummarizeOver,
		AirtableRate:   tc.AirtableRate,
		Timeout:        rt.cfg.ToolTimeout(),
		Summarizer:     rt.smallLLM,
	})
}

// setupTelemetry creates the telemetry exporter.
func (rt *runtime) setupTelemetry() error {
	var err error
	if rt.cfg.Telemetry.Enabled {
		rt.telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		rt.telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { rt.telem.Close() })
	return nil
}

// setupTranscripts creates the transcript sinks.
func (rt *runtime) setupTranscripts() error {
	files, err := transcript.NewFileSink(rt.cfg.TranscriptDir())
	if err != nil {
		return fmt.Errorf("creating transcript directory: %w", err)
	}
	rt.sinks = append(rt.sinks, files)
	rt.addCloser(func() { files.Close() })

	if rt.cfg.NATS.URL == "" {
		return nil
	}
	nc, err := transcript.Connect(rt.cfg.NATS.URL)
	if err != nil {
		rt.logger.Warn("NATS unavailable, transcripts stay local", map[string]interface{}{
			"url":   rt.cfg.NATS.URL,
			"error": err.Error(),
		})
		return nil
	}
	rt.sinks = append(rt.sinks, transcript.NewNATSSink(nc, rt.cfg.NATS.Subject))
	rt.addCloser(func() { nc.Drain() })
	return nil
}

// handlers returns the lifecycle handlers for new sessions.
func (rt *runtime) handlers() *chat.Handlers {
	roster := &chat.AgentRoster{
		Config:   rt.cfg,
		Provider: rt.provider,
		Backend:  rt.backend,
	}
	h := chat.NewHandlers(rt.cfg, roster, rt.provider, rt.toolbox.Functions())
	h.Telemetry = rt.telem
	return h
}

// logToFile diverts logging to <storage>/researchdesk.log.
func (rt *runtime) logToFile() error {
	path := filepath.Join(rt.cfg.StoragePath(), "researchdesk.log")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	logging.SetDefaultOutput(f)
	rt.addCloser(func() {
		logging.SetDefaultOutput(os.Stderr)
		f.Close()
	})
	return nil
}

func (rt *runtime) apiKey(provider string) string {
	if rt.creds != nil {
		if key := rt.creds.GetAPIKey(provider); key != "" {
			return key
		}
	}
	return config.Env(config.DefaultAPIKeyEnv(provider))
}

func (rt *runtime) addCloser(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// close releases runtime resources in reverse order.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// parseRetryConfig converts config values to RetryConfig.
func parseRetryConfig(maxRetries int, backoffStr string) llm.RetryConfig {
	cfg := llm.RetryConfig{
		MaxRetries: maxRetries,
	}
	if backoffStr != "" {
		if d, err := time.ParseDuration(backoffStr); err == nil {
			cfg.MaxBackoff = d
		}
	}
	return cfg
}
