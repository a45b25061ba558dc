// Package domain defines the core entities of the circulation system:
// catalog titles, physical units, borrowers, loans, and staff accounts.
package domain

import "time"

// Book represents a catalog title. It is the abstract description of a
// work; the physical objects that get checked out are Units.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ISBN          string    `json:"isbn,omitempty"`
	Genre         string    `json:"genre,omitempty"`
	PublishedYear int       `json:"published_year,omitempty"`
	Description   string    `json:"description,omitempty"`
	CoverURL      string    `json:"cover_url,omitempty"`
	CoverBlurhash string    `json:"cover_blurhash,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BookWithAvailability is the list-view projection of a Book with its
// unit counts folded in. Counts are computed at read time from the unit
// ledger, never stored on the book row.
type BookWithAvailability struct {
	Book
	TotalUnits     int `json:"total_units"`
	AvailableUnits int `json:"available_units"`
}

// HasAvailableUnits reports whether at least one copy can be checked out.
func (b *BookWithAvailability) HasAvailableUnits() bool {
	return b.AvailableUnits > 0
}
