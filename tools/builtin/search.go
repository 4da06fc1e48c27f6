package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BaSui01/agentswarm/internal/tlsutil"
	llmtools "github.com/BaSui01/agentswarm/llm/tools"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// WebSearchProvider is a web search backend.
type WebSearchProvider interface {
	Search(ctx context.Context, query string, opts WebSearchOptions) ([]WebSearchResult, error)
	Name() string
}

type WebSearchOptions struct {
	MaxResults int    `json:"max_results"`
	Region     string `json:"region,omitempty"` // e.g. "us-en"
}

type WebSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// DefaultDuckDuckGoURL is the no-JavaScript HTML endpoint.
const DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

const duckDuckGoUserAgent = "Mozilla/5.0 (compatible; agentswarm/1.0)"

// DuckDuckGo scrapes the DuckDuckGo HTML results page.
type DuckDuckGo struct {
	endpoint  string
	client    *http.Client
	userAgent string
}

type DuckDuckGoOption func(*DuckDuckGo)

// WithEndpoint points the provider at another results page, for tests.
func WithEndpoint(u string) DuckDuckGoOption {
	return func(d *DuckDuckGo) { d.endpoint = u }
}

func WithHTTPClient(c *http.Client) DuckDuckGoOption {
	return func(d *DuckDuckGo) { d.client = c }
}

func NewDuckDuckGo(opts ...DuckDuckGoOption) *DuckDuckGo {
	d := &DuckDuckGo{
		endpoint:  DefaultDuckDuckGoURL,
		client:    tlsutil.NewHTTPClient(tlsutil.ClientOptions{Timeout: 15 * time.Second, UserAgent: duckDuckGoUserAgent}),
		userAgent: duckDuckGoUserAgent,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, opts WebSearchOptions) ([]WebSearchResult, error) {
	form := url.Values{"q": {query}}
	if opts.Region != "" {
		form.Set("kl", opts.Region)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}
	results, err := ParseDuckDuckGoHTML(resp.Body)
	if err != nil {
		return nil, err
	}
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return results, nil
}

// ParseDuckDuckGoHTML extracts results from a DuckDuckGo HTML page. Ads
// are skipped and redirect links are unwrapped to the target URL.
func ParseDuckDuckGoHTML(r io.Reader) ([]WebSearchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}
	var results []WebSearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") && !hasClass(n, "result--ad") {
			if res, ok := parseResult(n); ok {
				results = append(results, res)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func parseResult(n *html.Node) (WebSearchResult, bool) {
	var res WebSearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				res.Title = textOf(n)
				res.URL = unwrapRedirect(attr(n, "href"))
			case hasClass(n, "result__snippet"):
				res.Snippet = textOf(n)
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return res, res.Title != "" && res.URL != ""
}

func unwrapRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasSuffix(u.Path, "/l/") {
		return target
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// WebSearchToolConfig configures the web_search tool.
type WebSearchToolConfig struct {
	Provider WebSearchProvider
	// MaxResults applies when the model does not ask for a count.
	MaxResults int
	Region     string
	Timeout    time.Duration
	RateLimit  *llmtools.RateLimitConfig
}

func DefaultWebSearchToolConfig() WebSearchToolConfig {
	return WebSearchToolConfig{
		Provider:   NewDuckDuckGo(),
		MaxResults: 1,
		Timeout:    15 * time.Second,
		RateLimit:  &llmtools.RateLimitConfig{MaxCalls: 30, Window: time.Minute},
	}
}

type webSearchArgs struct {
	Query      string `json:"query" jsonschema:"description=The search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of results to return,minimum=1,maximum=10"`
}

type webSearchResponse struct {
	Query   string            `json:"query"`
	Results []WebSearchResult `json:"results"`
}

// NoResults is what web_search answers when nothing matched.
const NoResults = "No results found."

// WebSearch returns the "web_search" tool.
func WebSearch(cfg WebSearchToolConfig, logger *zap.Logger) llmtools.Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Provider == nil {
		cfg.Provider = NewDuckDuckGo()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 1
	}
	logger = logger.With(zap.String("tool", "web_search"), zap.String("provider", cfg.Provider.Name()))

	tool := llmtools.MustFunctionTool("web_search",
		"Search the web for information that is not in your training data. Returns titles, URLs and snippets.",
		func(ctx context.Context, a webSearchArgs) (any, error) {
			query := strings.TrimSpace(a.Query)
			if query == "" {
				return nil, errors.New("query is required")
			}
			opts := WebSearchOptions{MaxResults: cfg.MaxResults, Region: cfg.Region}
			if a.MaxResults > 0 {
				opts.MaxResults = a.MaxResults
			}

			start := time.Now()
			results, err := cfg.Provider.Search(ctx, query, opts)
			if err != nil {
				logger.Warn("web search failed", zap.String("query", query), zap.Error(err))
				return nil, fmt.Errorf("an error occurred while searching: %w", err)
			}
			logger.Debug("web search completed",
				zap.String("query", query),
				zap.Int("results", len(results)),
				zap.Duration("duration", time.Since(start)))
			if len(results) == 0 {
				return NoResults, nil
			}
			return webSearchResponse{Query: query, Results: results}, nil
		})
	if cfg.Timeout > 0 {
		tool = tool.WithTimeout(cfg.Timeout)
	}
	if cfg.RateLimit != nil {
		tool = tool.WithRateLimit(cfg.RateLimit.MaxCalls, cfg.RateLimit.Window)
	}
	return tool
}
