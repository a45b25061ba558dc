package domain

import "time"

// UnitStatus represents the lifecycle state of a physical copy.
type UnitStatus string

const (
	// UnitStatusAvailable means the copy is on the shelf and may be checked out.
	UnitStatusAvailable UnitStatus = "available"
	// UnitStatusLoaned means the copy is out with a borrower. Exactly one
	// loan with stored status "active" references a loaned unit.
	UnitStatusLoaned UnitStatus = "loaned"
	// UnitStatusMaintenance means the copy is pulled for repair and cannot
	// be checked out or deleted.
	UnitStatusMaintenance UnitStatus = "maintenance"
)

// Unit represents one physical copy of a Book.
type Unit struct {
	ID        string     `json:"id"`
	BookID    string     `json:"book_id"`
	Status    UnitStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsAvailable reports whether the unit can be checked out.
func (u *Unit) IsAvailable() bool {
	return u.Status == UnitStatusAvailable
}

// IsDeletable reports whether the unit may be removed from the catalog.
// A unit is only deletable while on the shelf; never while loaned or in
// maintenance.
func (u *Unit) IsDeletable() bool {
	return u.Status == UnitStatusAvailable
}
