// Package search provides full-text search over the catalog and the
// member roster using Bleve. The dashboard's global search box queries
// books and borrowers in one request with typo tolerance.
package search

import (
	"github.com/libradesk/libradesk-server/internal/domain"
)

// DocType represents the type of document in the unified index.
type DocType string

// Document types for the search index.
const (
	DocTypeBook     DocType = "book"
	DocTypeBorrower DocType = "borrower"
)

// Document is the unified document structure for the Bleve index.
// Books and borrowers share one index with type discrimination so the
// dashboard can search both in a single query.
type Document struct {
	// Identity
	ID   string  `json:"id"`
	Type DocType `json:"type"`

	// Primary searchable text. Book: title, Borrower: name.
	Name string `json:"name"`

	// Book-specific fields (empty for borrowers)
	Author        string `json:"author,omitempty"`
	ISBN          string `json:"isbn,omitempty"`
	Genre         string `json:"genre,omitempty"`
	Description   string `json:"description,omitempty"`
	PublishedYear int    `json:"published_year,omitempty"`

	// Borrower-specific fields (empty for books)
	Email    string `json:"email,omitempty"`
	MemberID string `json:"member_id,omitempty"`

	// Timestamps for sorting
	CreatedAt int64 `json:"created_at"` // Unix millis
	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names.
// Bleve by default uses Go struct field names (capitalized), but our
// mapping uses lowercase names, so we convert explicitly.
func (d *Document) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":         d.ID,
		"type":       string(d.Type),
		"name":       d.Name,
		"created_at": d.CreatedAt,
		"updated_at": d.UpdatedAt,
	}

	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.ISBN != "" {
		m["isbn"] = d.ISBN
	}
	if d.Genre != "" {
		m["genre"] = d.Genre
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.PublishedYear != 0 {
		m["published_year"] = d.PublishedYear
	}
	if d.Email != "" {
		m["email"] = d.Email
	}
	if d.MemberID != "" {
		m["member_id"] = d.MemberID
	}

	return m
}

// BookDocument builds a search document from a catalog title.
func BookDocument(b *domain.Book) *Document {
	return &Document{
		ID:            b.ID,
		Type:          DocTypeBook,
		Name:          b.Title,
		Author:        b.Author,
		ISBN:          b.ISBN,
		Genre:         b.Genre,
		Description:   b.Description,
		PublishedYear: b.PublishedYear,
		CreatedAt:     b.CreatedAt.UnixMilli(),
		UpdatedAt:     b.UpdatedAt.UnixMilli(),
	}
}

// BorrowerDocument builds a search document from a member record.
func BorrowerDocument(b *domain.Borrower) *Document {
	return &Document{
		ID:        b.ID,
		Type:      DocTypeBorrower,
		Name:      b.Name,
		Email:     b.Email,
		MemberID:  b.MemberID,
		CreatedAt: b.CreatedAt.UnixMilli(),
		UpdatedAt: b.UpdatedAt.UnixMilli(),
	}
}
