package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	SerpAPIName        = "serpapi_search"
	SerpAPIDescription = "A tool to search the web for datasets. Input should be a search query related to datasets, data science, or machine learning."

	noResults  = "No good search result found"
	emptyQuery = "The search query was empty. Call the tool again with the search terms as input."
)

type SerpAPIConfig struct {
	APIKey     string
	Endpoint   string
	NumResults int
	Timeout    time.Duration
	CacheTTL   time.Duration
	CacheSize  int
}

// SerpAPI searches Google through serpapi.com and renders the results as text.
type SerpAPI struct {
	cfg    SerpAPIConfig
	client *resty.Client
	cache  *expirable.LRU[string, string]
}

type serpAPIResponse struct {
	Error     string `json:"error"`
	AnswerBox *struct {
		Title   string `json:"title"`
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answer_box"`
	KnowledgeGraph *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Website     string `json:"website"`
	} `json:"knowledge_graph"`
	OrganicResults []struct {
		Position int    `json:"position"`
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
	} `json:"organic_results"`
}

func NewSerpAPI(cfg SerpAPIConfig) *SerpAPI {
	if cfg.NumResults <= 0 {
		cfg.NumResults = 5
	}
	client := resty.New().
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	s := &SerpAPI{cfg: cfg, client: client}
	if cfg.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s
}

func (s *SerpAPI) Name() string        { return SerpAPIName }
func (s *SerpAPI) Description() string { return SerpAPIDescription }

// Call runs one search. Provider errors are returned as is; there is no retry.
func (s *SerpAPI) Call(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return emptyQuery, nil
	}

	key := strings.ToLower(query)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	var result serpAPIResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"engine":  "google",
			"q":       query,
			"num":     strconv.Itoa(s.cfg.NumResults),
			"api_key": s.cfg.APIKey,
		}).
		SetResult(&result).
		SetError(&result).
		Get(s.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("serpapi request failed: %w", err)
	}
	if resp.IsError() {
		if result.Error != "" {
			return "", fmt.Errorf("serpapi returned status %d: %s", resp.StatusCode(), result.Error)
		}
		return "", fmt.Errorf("serpapi returned status %d", resp.StatusCode())
	}
	if result.Error != "" && len(result.OrganicResults) == 0 {
		// SerpAPI reports "no results" as an error with a 200 status.
		if strings.Contains(strings.ToLower(result.Error), "hasn't returned any results") {
			return noResults, nil
		}
		return "", fmt.Errorf("serpapi error: %s", result.Error)
	}

	text := s.render(&result)
	if s.cache != nil {
		s.cache.Add(key, text)
	}
	return text, nil
}

func (s *SerpAPI) render(r *serpAPIResponse) string {
	var b strings.Builder
	if r.AnswerBox != nil {
		switch {
		case r.AnswerBox.Answer != "":
			fmt.Fprintf(&b, "Answer: %s\n", r.AnswerBox.Answer)
		case r.AnswerBox.Snippet != "":
			fmt.Fprintf(&b, "Answer: %s\n", r.AnswerBox.Snippet)
		}
	}
	if r.KnowledgeGraph != nil && r.KnowledgeGraph.Description != "" {
		fmt.Fprintf(&b, "%s: %s", r.KnowledgeGraph.Title, r.KnowledgeGraph.Description)
		if r.KnowledgeGraph.Website != "" {
			fmt.Fprintf(&b, " (%s)", r.KnowledgeGraph.Website)
		}
		b.WriteByte('\n')
	}
	n := 0
	for _, res := range r.OrganicResults {
		if n == s.cfg.NumResults {
			break
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n   %s\n", n, res.Title, res.Link)
		if res.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", res.Snippet)
		}
	}
	if b.Len() == 0 {
		return noResults
	}
	return strings.TrimRight(b.String(), "\n")
}
