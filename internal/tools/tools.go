// Package tools implements the research functions the hosted assistants call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/vinayprograms/agentkit/llm"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/vinayprograms/researchdesk/internal/agentchat"
	"github.com/vinayprograms/researchdesk/internal/logging"
)

// Function names as registered on the hosted assistants.
const (
	WebScraping    = "web_scraping"
	GoogleSearch   = "google_search"
	GetRecords     = "get_airtable_records"
	UpdateRecord   = "update_single_airtable_record"
	userAgent      = "researchdesk/1.0"
	defaultTimeout = 60 * time.Second
	maxBody        = 8 << 20
)

// Default service endpoints.
const (
	SerperURL      = "https://google.serper.dev/search"
	DuckDuckGoURL  = "https://html.duckduckgo.com/html/"
	BrowserlessURL = "https://chrome.browserless.io/content"
	AirtableURL    = "https://api.airtable.com/v0"
)

// Config configures a Toolbox. Empty endpoints use the public services.
type Config struct {
	SerperKey      string
	BrowserlessKey string
	AirtableKey    string

	SerperURL      string
	DuckDuckGoURL  string
	BrowserlessURL string
	AirtableURL    string

	CacheSize     int
	CacheTTL      time.Duration
	SummarizeOver int
	AirtableRate  float64
	Timeout       time.Duration

	// Summarizer condenses long pages for the scraping objective.
	Summarizer llm.Provider
	HTTPClient *http.Client
}

// Toolbox holds the shared clients behind the research functions.
type Toolbox struct {
	cfg      Config
	client   *http.Client
	pages    *expirable.LRU[string, string]
	airtable *rate.Limiter
	logger   *logging.Logger
}

// New creates a Toolbox.
func New(cfg Config) *Toolbox {
	if cfg.SerperURL == "" {
		cfg.SerperURL = SerperURL
	}
	if cfg.DuckDuckGoURL == "" {
		cfg.DuckDuckGoURL = DuckDuckGoURL
	}
	if cfg.BrowserlessURL == "" {
		cfg.BrowserlessURL = BrowserlessURL
	}
	if cfg.AirtableURL == "" {
		cfg.AirtableURL = AirtableURL
	}
	cfg.AirtableURL = strings.TrimSuffix(cfg.AirtableURL, "/")
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 128
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.SummarizeOver <= 0 {
		cfg.SummarizeOver = 10000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		// cookiejar.New only fails on a nil public suffix list.
		jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		client = &http.Client{Timeout: cfg.Timeout, Jar: jar}
	}

	limit := rate.Inf
	if cfg.AirtableRate > 0 {
		limit = rate.Limit(cfg.AirtableRate)
	}

	return &Toolbox{
		cfg:      cfg,
		client:   client,
		pages:    expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
		airtable: rate.NewLimiter(limit, 1),
		logger:   logging.New().WithComponent("tools"),
	}
}

// Functions returns every research function keyed by its registered name.
func (t *Toolbox) Functions() map[string]agentchat.Function {
	return map[string]agentchat.Function{
		WebScraping:  t.webScraping,
		GoogleSearch: t.googleSearch,
		GetRecords:   t.getRecords,
		UpdateRecord: t.updateRecord,
	}
}

func decodeArgs(arguments string, v any) error {
	if err := json.Unmarshal([]byte(arguments), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func required(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing required argument(s): %s", strings.Join(missing, ", "))
}

func (t *Toolbox) do(ctx context.Context, req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", userAgent)
	resp, err := t.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
