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
	"github.com/tidwall/gjson"
)

const maxResults = 10

type searchArgs struct {
	SearchKeyword string `json:"search_keyword"`
	Query         string `json:"query"`
}

type searchResult struct {
	Title   string
	Link    string
	Snippet string
}

// googleSearch runs a web search through Serper when a key is configured and
// DuckDuckGo otherwise.
func (t *Toolbox) googleSearch(ctx context.Context, arguments string) (string, error) {
	var args searchArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return "", err
	}
	query := args.SearchKeyword
	if query == "" {
		query = args.Query
	}
	if err := required(map[string]string{"search_keyword": query}); err != nil {
		return "", err
	}

	var (
		answer  string
		results []searchResult
		err     error
	)
	if t.cfg.SerperKey != "" {
		answer, results, err = t.serper(ctx, query)
	} else {
		results, err = t.duckduckgo(ctx, query)
	}
	if err != nil {
		return "", err
	}
	return formatResults(query, answer, results), nil
}

func (t *Toolbox) serper(ctx context.Context, query string) (string, []searchResult, error) {
	payload, _ := json.Marshal(map[string]string{"q": query})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.SerperURL, bytes.NewReader(payload))
	if err != nil {
		return "", nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", t.cfg.SerperKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := t.do(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("serper search: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", nil, fmt.Errorf("serper search: invalid JSON response")
	}

	parsed := gjson.ParseBytes(body)
	answer := parsed.Get("answerBox.answer").String()
	if answer == "" {
		answer = parsed.Get("answerBox.snippet").String()
	}
	if answer == "" {
		answer = parsed.Get("knowledgeGraph.description").String()
	}

	var results []searchResult
	for _, r := range parsed.Get("organic").Array() {
		results = append(results, searchResult{
			Title:   r.Get("title").String(),
			Link:    r.Get("link").String(),
			Snippet: r.Get("snippet").String(),
		})
		if len(results) == maxResults {
			break
		}
	}
	return answer, results, nil
}

func (t *Toolbox) duckduckgo(ctx context.Context, query string) ([]searchResult, error) {
	endpoint := t.cfg.DuckDuckGoURL + "?q=" + neturl.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	body, err := t.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	var results []searchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := s.Find(".result__a").First()
		link, _ := title.Attr("href")
		results = append(results, searchResult{
			Title:   strings.TrimSpace(title.Text()),
			Link:    resolveDuckLink(link),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").Text()),
		})
		return len(results) < maxResults
	})
	return results, nil
}

// resolveDuckLink unwraps DuckDuckGo redirect links to the target URL.
func resolveDuckLink(link string) string {
	u, err := neturl.Parse(link)
	if err != nil {
		return link
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	return link
}

func formatResults(query, answer string, results []searchResult) string {
	if answer == "" && len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}
	var b strings.Builder
	if answer != "" {
		fmt.Fprintf(&b, "Answer: %s\n\n", answer)
	}
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n%s\n", i+1, r.Title, r.Link)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "%s\n", r.Snippet)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
