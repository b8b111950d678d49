package chat

import (
	"fmt"
	"strings"

	"github.com/kalambet/jobhunter/internal/search"
)

// SearchToolName is the only tool the assistant may call.
const SearchToolName = "search_job_listings"

// maxResults is the listing cap per search call.
const maxResults = 5

// SearchTool declares search_job_listings to the model.
func SearchTool() ToolDeclaration {
	return ToolDeclaration{
		Name:        SearchToolName,
		Description: "Search for job openings on various job boards and company websites",
		Parameters: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"query": {
					Type:        "string",
					Description: "Search query for job listings. Should include job title, skills, and location if specified.",
				},
				"sites": {
					Type:        "array",
					Items:       &Schema{Type: "string"},
					Description: "Specific job sites to search (e.g., linkedin.com, indeed.com, glassdoor.com)",
				},
			},
			Required: []string{"query"},
		},
	}
}

// SearchArgs are the decoded arguments of a search_job_listings call.
type SearchArgs struct {
	Query string
	Sites []string
}

// ParseSearchCall checks the tool name and decodes its arguments.
func ParseSearchCall(call ToolCall) (SearchArgs, error) {
	if call.Name != SearchToolName {
		return SearchArgs{}, fmt.Errorf("%w: %q", ErrUnknownTool, call.Name)
	}
	query, _ := call.Args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchArgs{}, fmt.Errorf("%w: query is required", ErrToolArgs)
	}

	var sites []string
	switch v := call.Args["sites"].(type) {
	case nil:
	case []string:
		sites = v
	case []any:
		for _, s := range v {
			str, ok := s.(string)
			if !ok {
				return SearchArgs{}, fmt.Errorf("%w: sites must be strings", ErrToolArgs)
			}
			if str = strings.TrimSpace(str); str != "" {
				sites = append(sites, str)
			}
		}
	default:
		return SearchArgs{}, fmt.Errorf("%w: sites must be a list", ErrToolArgs)
	}
	return SearchArgs{Query: query, Sites: sites}, nil
}

// SearchRequest builds the job-search configuration for a tool call.
func SearchRequest(args SearchArgs) search.Request {
	domains := args.Sites
	if len(domains) == 0 {
		domains = search.DefaultJobSites
	}
	return search.Request{
		Query:             args.Query + " job openings",
		SearchDepth:       search.DepthAdvanced,
		IncludeAnswer:     true,
		IncludeRawContent: true,
		MaxResults:        maxResults,
		IncludeDomains:    append([]string(nil), domains...),
	}
}

// toolResult shapes a search response for the model.
func toolResult(call ToolCall, resp *search.Response) ToolResult {
	results := resp.Results
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	listings := make([]map[string]any, 0, len(results))
	for _, r := range results {
		l := map[string]any{
			"title":   r.Title,
			"url":     r.URL,
			"content": r.Content,
		}
		if r.RawContent != "" {
			l["raw_content"] = r.RawContent
		}
		listings = append(listings, l)
	}
	return ToolResult{
		ID:   call.ID,
		Name: call.Name,
		Response: map[string]any{
			"results": listings,
			"answer":  resp.Answer,
		},
	}
}

// JobResults shapes a search response for the caller.
func JobResults(resp *search.Response) []JobResult {
	results := resp.Results
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	out := make([]JobResult, 0, len(results))
	for _, r := range results {
		out = append(out, JobResult{
			Title:   r.Title,
			Content: r.Content,
			URL:     r.URL,
			Source:  search.SourceFor(r.URL),
		})
	}
	return out
}
