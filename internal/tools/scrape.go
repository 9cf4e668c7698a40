package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/vinayprograms/agentkit/llm"
)

const summaryPrompt = "Write a summary of the following text for %s:\n\"%s\"\nSUMMARY:"

type scrapeArgs struct {
	Objective string `json:"objective"`
	URL       string `json:"url"`
}

// webScraping fetches a page and returns its text, summarized for the
// objective when the page is long.
func (t *Toolbox) webScraping(ctx context.Context, arguments string) (string, error) {
	var args scrapeArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return "", err
	}
	if err := required(map[string]string{"objective": args.Objective, "url": args.URL}); err != nil {
		return "", err
	}
	u, err := neturl.Parse(args.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid url %q: must be http or https", args.URL)
	}

	text, ok := t.pages.Get(args.URL)
	if !ok {
		html, err := t.fetchPage(ctx, args.URL)
		if err != nil {
			return "", err
		}
		text, err = htmlToText(html)
		if err != nil {
			return "", fmt.Errorf("parse HTML: %w", err)
		}
		t.pages.Add(args.URL, text)
	} else {
		t.logger.Debug("scrape cache hit", map[string]interface{}{"url": args.URL})
	}

	if len(text) <= t.cfg.SummarizeOver {
		return text, nil
	}
	if t.cfg.Summarizer == nil {
		return text[:t.cfg.SummarizeOver] + "\n\n[Content truncated...]", nil
	}
	return t.summarize(ctx, args.Objective, text)
}

// fetchPage returns rendered HTML through Browserless when a key is set and
// the raw page otherwise.
func (t *Toolbox) fetchPage(ctx context.Context, url string) (string, error) {
	var req *http.Request
	var err error
	if t.cfg.BrowserlessKey != "" {
		payload, _ := json.Marshal(map[string]string{"url": url})
		endpoint := t.cfg.BrowserlessURL + "?token=" + neturl.QueryEscape(t.cfg.BrowserlessKey)
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Cache-Control", "no-cache")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	body, err := t.do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	return string(body), nil
}

// htmlToText extracts the readable text of a page.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, svg").Remove()

	var lines []string
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		for _, line := range strings.Split(s.Text(), "\n") {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				lines = append(lines, line)
			}
		}
	})
	if len(lines) == 0 {
		if title := strings.TrimSpace(doc.Find("title").Text()); title != "" {
			lines = append(lines, title)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// summarize condenses text chunk by chunk, then combines the partial
// summaries when there is more than one.
func (t *Toolbox) summarize(ctx context.Context, objective, text string) (string, error) {
	chunks := splitChunks(text, t.cfg.SummarizeOver)
	summaries := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		s, err := t.ask(ctx, fmt.Sprintf(summaryPrompt, objective, chunk))
		if err != nil {
			return "", err
		}
		summaries = append(summaries, s)
	}
	if len(summaries) == 1 {
		return summaries[0], nil
	}
	return t.ask(ctx, fmt.Sprintf(summaryPrompt, objective, strings.Join(summaries, "\n")))
}

func (t *Toolbox) ask(ctx context.Context, prompt string) (string, error) {
	resp, err := t.cfg.Summarizer.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// splitChunks splits text into pieces of at most size bytes, preferring
// line boundaries.
func splitChunks(text string, size int) []string {
	var chunks []string
	for len(text) > size {
		cut := strings.LastIndex(text[:size+1], "\n")
		if cut <= 0 {
			cut = size
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
