package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for search documents.
//
// Priorities:
//  1. Full-text search on titles/names with English stemming
//  2. Exact keyword matching for type, genre, ISBN, and member ID filters
//  3. Term vectors on name/author for highlighting
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	// Name field - primary search target
	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	// Author - searchable, important for book search
	authorFieldMapping := bleve.NewTextFieldMapping()
	authorFieldMapping.Analyzer = en.AnalyzerName
	authorFieldMapping.Store = true
	authorFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("author", authorFieldMapping)

	// Description - searchable but not stored (too large)
	descFieldMapping := bleve.NewTextFieldMapping()
	descFieldMapping.Analyzer = en.AnalyzerName
	descFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("description", descFieldMapping)

	// --- Keyword fields (exact match, facetable) ---

	typeFieldMapping := bleve.NewTextFieldMapping()
	typeFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("type", typeFieldMapping)

	genreFieldMapping := bleve.NewTextFieldMapping()
	genreFieldMapping.Analyzer = keyword.Name
	genreFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("genre", genreFieldMapping)

	isbnFieldMapping := bleve.NewTextFieldMapping()
	isbnFieldMapping.Analyzer = keyword.Name
	isbnFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("isbn", isbnFieldMapping)

	memberIDFieldMapping := bleve.NewTextFieldMapping()
	memberIDFieldMapping.Analyzer = keyword.Name
	memberIDFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("member_id", memberIDFieldMapping)

	emailFieldMapping := bleve.NewTextFieldMapping()
	emailFieldMapping.Analyzer = keyword.Name
	emailFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("email", emailFieldMapping)

	// --- Numeric fields ---

	yearFieldMapping := bleve.NewNumericFieldMapping()
	yearFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("published_year", yearFieldMapping)

	createdFieldMapping := bleve.NewNumericFieldMapping()
	createdFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("created_at", createdFieldMapping)

	updatedFieldMapping := bleve.NewNumericFieldMapping()
	updatedFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("updated_at", updatedFieldMapping)

	indexMapping.DefaultMapping = docMapping

	return indexMapping
}
