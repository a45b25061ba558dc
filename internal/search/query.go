package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search query.
type Params struct {
	Query string   // User's search query
	Types []string // Document types to include (empty = all)

	// Filters
	Genre   string // Filter by exact genre
	MinYear int    // Minimum published year (books only)
	MaxYear int    // Maximum published year (books only)

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "name", "recent"
	SortOrder string // "asc", "desc"

	Highlight bool // Include match highlighting
}

// DefaultParams returns sensible defaults.
func DefaultParams() Params {
	return Params{
		Limit:     20,
		Offset:    0,
		SortBy:    "relevance",
		SortOrder: "desc",
		Highlight: true,
	}
}

// Result represents the search results.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit represents a single search result.
type Hit struct {
	ID            string            `json:"id"`
	Type          DocType           `json:"type"`
	Score         float64           `json:"score"`
	Name          string            `json:"name"`
	Author        string            `json:"author,omitempty"`
	ISBN          string            `json:"isbn,omitempty"`
	Genre         string            `json:"genre,omitempty"`
	PublishedYear int               `json:"published_year,omitempty"`
	Email         string            `json:"email,omitempty"`
	MemberID      string            `json:"member_id,omitempty"`
	Highlights    map[string]string `json:"highlights,omitempty"`
}

// Search executes a search query.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	searchQuery := buildSearchQuery(params)

	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	addSorting(searchRequest, params)

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
		searchRequest.Highlight.AddField("author")
	}

	searchRequest.Fields = []string{
		"id", "type", "name", "author", "isbn", "genre",
		"published_year", "email", "member_id",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := Hit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if t, ok := hit.Fields["type"].(string); ok {
			h.Type = DocType(t)
		}
		if n, ok := hit.Fields["name"].(string); ok {
			h.Name = n
		}
		if a, ok := hit.Fields["author"].(string); ok {
			h.Author = a
		}
		if i, ok := hit.Fields["isbn"].(string); ok {
			h.ISBN = i
		}
		if g, ok := hit.Fields["genre"].(string); ok {
			h.Genre = g
		}
		if y, ok := hit.Fields["published_year"].(float64); ok {
			h.PublishedYear = int(y)
		}
		if e, ok := hit.Fields["email"].(string); ok {
			h.Email = e
		}
		if m, ok := hit.Fields["member_id"].(string); ok {
			h.MemberID = m
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params Params) query.Query {
	var queries []query.Query

	// Main text query: match on name and author, with fuzzy and prefix
	// variants for typo tolerance and autocomplete. Member IDs and ISBNs
	// are matched exactly so scanning a card or barcode finds the record.
	if params.Query != "" {
		textQueries := []query.Query{}

		nameMatch := bleve.NewMatchQuery(params.Query)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)
		textQueries = append(textQueries, nameMatch)

		authorMatch := bleve.NewMatchQuery(params.Query)
		authorMatch.SetField("author")
		authorMatch.SetBoost(1.5)
		textQueries = append(textQueries, authorMatch)

		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for autocomplete (minimum 2 chars)
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		isbnTerm := bleve.NewTermQuery(params.Query)
		isbnTerm.SetField("isbn")
		isbnTerm.SetBoost(5.0)
		textQueries = append(textQueries, isbnTerm)

		memberTerm := bleve.NewTermQuery(params.Query)
		memberTerm.SetField("member_id")
		memberTerm.SetBoost(5.0)
		textQueries = append(textQueries, memberTerm)

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	// Type filter
	if len(params.Types) > 0 {
		typeQueries := make([]query.Query, len(params.Types))
		for i, t := range params.Types {
			tq := bleve.NewTermQuery(t)
			tq.SetField("type")
			typeQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(typeQueries...))
	}

	// Genre filter (exact match)
	if params.Genre != "" {
		gq := bleve.NewTermQuery(params.Genre)
		gq.SetField("genre")
		queries = append(queries, gq)
	}

	// Year range filter
	if params.MinYear > 0 || params.MaxYear > 0 {
		minYear := float64(params.MinYear)
		maxYear := float64(params.MaxYear)
		if params.MaxYear == 0 {
			maxYear = 3000 // Far future
		}
		rangeQuery := bleve.NewNumericRangeQuery(&minYear, &maxYear)
		rangeQuery.SetField("published_year")
		queries = append(queries, rangeQuery)
	}

	// Combine all queries with AND
	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params Params) {
	switch params.SortBy {
	case "name", "title":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-name"})
		} else {
			req.SortBy([]string{"name"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"created_at"})
		} else {
			req.SortBy([]string{"-created_at"})
		}
	default:
		// Relevance (score) is default - Bleve handles this
		req.SortBy([]string{"-_score"})
	}
}
