package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vinayprograms/agentkit/llm"
)

type summarizer struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (s *summarizer) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, req.Messages[0].Content)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: "  summary " + string(rune('A'+len(s.prompts)-1)) + "  "}, nil
}

func (s *summarizer) Name() string { return "summarizer" }

const page = `<html><head><title>Acme</title><style>body{}</style></head>
<body><h1>Acme Corp</h1><script>var x = 1;</script>
<p>Acme   builds   rockets.</p></body></html>`

func TestFunctionsRegistry(t *testing.T) {
	box := New(Config{})
	fns := box.Functions()
	assert.Len(t, fns, 4)
	for _, name := range []string{WebScraping, GoogleSearch, GetRecords, UpdateRecord} {
		assert.Contains(t, fns, name)
	}
}

func TestWebScrapingDirect(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, page)
	}))
	defer srv.Close()

	box := New(Config{})
	args := `{"objective":"learn about acme","url":"` + srv.URL + `"}`

	out, err := box.Functions()[WebScraping](context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp\nAcme builds rockets.", out)
	assert.NotContains(t, out, "var x")

	_, err = box.Functions()[WebScraping](context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second scrape should be served from cache")
}

func TestWebScrapingBrowserless(t *testing.T) {
	var gotToken, gotURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("token")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotURL = body["url"]
		_, _ = io.WriteString(w, page)
	}))
	defer srv.Close()

	box := New(Config{BrowserlessKey: "secret", BrowserlessURL: srv.URL + "/content"})
	out, err := box.webScraping(context.Background(), `{"objective":"o","url":"https://acme.example"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Acme builds rockets.")
	assert.Equal(t, "secret", gotToken)
	assert.Equal(t, "https://acme.example", gotURL)
}

func TestWebScrapingSummarizesLongPages(t *testing.T) {
	long := "<html><body>" + strings.Repeat("<p>rockets are great</p>\n", 40) + "</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, long)
	}))
	defer srv.Close()

	sum := &summarizer{}
	box := New(Config{Summarizer: sum, SummarizeOver: 200})
	out, err := box.webScraping(context.Background(), `{"objective":"rocket market","url":"`+srv.URL+`"}`)
	require.NoError(t, err)

	require.Greater(t, len(sum.prompts), 2, "expected chunk summaries plus a combining pass")
	assert.Contains(t, sum.prompts[0], "Write a summary of the following text for rocket market:")
	last := sum.prompts[len(sum.prompts)-1]
	assert.Contains(t, last, "summary A")
	assert.Equal(t, strings.TrimSpace("summary "+string(rune('A'+len(sum.prompts)-1))), out)
}

func TestWebScrapingTruncatesWithoutSummarizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<body>"+strings.Repeat("x", 500)+"</body>")
	}))
	defer srv.Close()

	box := New(Config{SummarizeOver: 100})
	out, err := box.webScraping(context.Background(), `{"objective":"o","url":"`+srv.URL+`"}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("x", 100)+"\n\n[Content truncated...]"))
}

func TestWebScrapingSummarizerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<body>"+strings.Repeat("y", 300)+"</body>")
	}))
	defer srv.Close()

	box := New(Config{SummarizeOver: 100, Summarizer: &summarizer{err: errors.New("quota")}})
	_, err := box.webScraping(context.Background(), `{"objective":"o","url":"`+srv.URL+`"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestWebScrapingValidation(t *testing.T) {
	box := New(Config{})
	tests := []struct {
		name string
		args string
		want string
	}{
		{"bad json", `not json`, "invalid arguments"},
		{"missing url", `{"objective":"o"}`, "missing required argument(s): url"},
		{"missing both", `{}`, "missing required argument(s): objective, url"},
		{"bad scheme", `{"objective":"o","url":"ftp://x"}`, "must be http or https"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := box.webScraping(context.Background(), tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWebScrapingHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := New(Config{}).webScraping(context.Background(), `{"objective":"o","url":"`+srv.URL+`"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 410")
}

func TestGoogleSearchSerper(t *testing.T) {
	var gotKey string
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		_ = json.NewDecoder(r.Body).Decode(&gotQuery)
		_, _ = io.WriteString(w, `{
			"answerBox": {"answer": "Acme is a rocket company"},
			"organic": [
				{"title": "Acme", "link": "https://acme.example", "snippet": "Rockets"},
				{"title": "Acme News", "link": "https://news.example/acme"}
			]
		}`)
	}))
	defer srv.Close()

	box := New(Config{SerperKey: "k", SerperURL: srv.URL})
	out, err := box.googleSearch(context.Background(), `{"search_keyword":"acme"}`)
	require.NoError(t, err)

	assert.Equal(t, "k", gotKey)
	assert.Equal(t, "acme", gotQuery["q"])
	assert.Equal(t, "Answer: Acme is a rocket company\n\n"+
		"1. Acme\nhttps://acme.example\nRockets\n\n"+
		"2. Acme News\nhttps://news.example/acme", out)
}

func TestGoogleSearchDuckDuckGo(t *testing.T) {
	var gotQ string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQ = r.URL.Query().Get("q")
		_, _ = io.WriteString(w, `<html><body>
			<div class="result">
				<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Facme.example%2F">Acme</a>
				<a class="result__snippet">Builds rockets</a>
			</div>
			<div class="result">
				<a class="result__a" href="https://other.example">Other</a>
			</div>
		</body></html>`)
	}))
	defer srv.Close()

	box := New(Config{DuckDuckGoURL: srv.URL})
	out, err := box.googleSearch(context.Background(), `{"query":"acme rockets"}`)
	require.NoError(t, err)

	assert.Equal(t, "acme rockets", gotQ)
	assert.Contains(t, out, "1. Acme\nhttps://acme.example/\nBuilds rockets")
	assert.Contains(t, out, "2. Other\nhttps://other.example")
}

func TestGoogleSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"organic": []}`)
	}))
	defer srv.Close()

	out, err := New(Config{SerperKey: "k", SerperURL: srv.URL}).googleSearch(context.Background(), `{"search_keyword":"zzz"}`)
	require.NoError(t, err)
	assert.Equal(t, `No results found for "zzz".`, out)
}

func TestGoogleSearchRequiresKeyword(t *testing.T) {
	_, err := New(Config{}).googleSearch(context.Background(), `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search_keyword")
}

func TestGetAirtableRecordsPaginates(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		assert.Equal(t, "/v0/app1/tbl1", r.URL.Path)
		if r.URL.Query().Get("offset") == "" {
			_, _ = io.WriteString(w, `{"records":[{"id":"rec1","fields":{"Name":"Acme"}}],"offset":"p2"}`)
			return
		}
		_, _ = io.WriteString(w, `{"records":[{"id":"rec2","fields":{"Name":"Globex"}}]}`)
	}))
	defer srv.Close()

	box := New(Config{AirtableKey: "pat", AirtableURL: srv.URL + "/v0/"})
	out, err := box.getRecords(context.Background(), `{"base_id":"app1","table_id":"tbl1"}`)
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "rec1", records[0]["id"])
	assert.Equal(t, "rec2", records[1]["id"])
	assert.Equal(t, []string{"Bearer pat", "Bearer pat"}, auth)
}

func TestUpdateAirtableRecord(t *testing.T) {
	var method string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"records":[{"id":"rec1","fields":{"Status":"Done"}}]}`)
	}))
	defer srv.Close()

	box := New(Config{AirtableKey: "pat", AirtableURL: srv.URL})
	out, err := box.updateRecord(context.Background(),
		`{"base_id":"app1","table_id":"tbl1","id":"rec1","fields":{"Status":"Done"}}`)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, method)
	records := body["records"].([]any)
	require.Len(t, records, 1)
	rec := records[0].(map[string]any)
	assert.Equal(t, "rec1", rec["id"])
	assert.Equal(t, map[string]any{"Status": "Done"}, rec["fields"])
	assert.Contains(t, out, `"Status":"Done"`)
}

func TestAirtableValidation(t *testing.T) {
	box := New(Config{AirtableKey: "pat"})

	_, err := box.updateRecord(context.Background(), `{"base_id":"a","table_id":"t","id":"r"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fields")

	_, err = New(Config{}).getRecords(context.Background(), `{"base_id":"a","table_id":"t"}`)
	assert.ErrorIs(t, err, errNoAirtableKey)
}

func TestAirtableRateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"records":[]}`)
	}))
	defer srv.Close()

	box := New(Config{AirtableKey: "pat", AirtableURL: srv.URL, AirtableRate: 0.001})
	_, err := box.getRecords(context.Background(), `{"base_id":"a","table_id":"t"}`)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = box.getRecords(ctx, `{"base_id":"a","table_id":"t"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestSplitChunks(t *testing.T) {
	chunks := splitChunks("aaaa\nbbbb\ncccc", 9)
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, chunks)
	assert.Equal(t, []string{"abc", "def"}, splitChunks("abcdef", 3))
	assert.Equal(t, []string{"aaaa", "bbbb"}, splitChunks("aaaa\nbbbb", 4))
	assert.Equal(t, []string{"aa\nbb", "cc"}, splitChunks("aa\nbb\ncc", 7))
	assert.Nil(t, splitChunks("", 3))
}
