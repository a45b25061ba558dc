// Package main provides a tool to seed the database with sample library data.
//
// This creates a small catalog of books with physical copies, a handful of
// members, and optionally some loans so the dashboard and overdue views have
// something to show during development.
//
// Usage:
//
//	DATA_PATH=~/LibraDesk/data go run ./cmd/seed
//	DATA_PATH=~/LibraDesk/data go run ./cmd/seed --with-loans  # Also open some loans
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/id"
	"github.com/libradesk/libradesk-server/internal/store"
)

var withLoans = flag.Bool("with-loans", false, "Also check out some copies, including a few overdue")

type seedBook struct {
	title  string
	author string
	isbn   string
	genre  string
	year   int
	copies int
}

var catalog = []seedBook{
	{"The Left Hand of Darkness", "Ursula K. Le Guin", "9780441478125", "Science Fiction", 1969, 2},
	{"A Wizard of Earthsea", "Ursula K. Le Guin", "9780547773742", "Fantasy", 1968, 3},
	{"The Name of the Rose", "Umberto Eco", "9780544176560", "Mystery", 1980, 1},
	{"Invisible Cities", "Italo Calvino", "9780156453806", "Fiction", 1972, 2},
	{"The Master and Margarita", "Mikhail Bulgakov", "9780143108276", "Fiction", 1967, 2},
	{"Snow Crash", "Neal Stephenson", "9780553380958", "Science Fiction", 1992, 2},
	{"Piranesi", "Susanna Clarke", "9781635575637", "Fantasy", 2020, 3},
	{"The Remains of the Day", "Kazuo Ishiguro", "9780679731726", "Fiction", 1989, 1},
	{"Gideon the Ninth", "Tamsyn Muir", "9781250313195", "Science Fiction", 2019, 2},
	{"The Haunting of Hill House", "Shirley Jackson", "9780143039983", "Horror", 1959, 1},
}

type seedBorrower struct {
	name     string
	memberID string
	phone    string
}

var members = []seedBorrower{
	{"Maya Okonkwo", "M-1001", "555-0131"},
	{"Daniel Reyes", "M-1002", "555-0144"},
	{"Priya Raman", "M-1003", ""},
	{"Tomasz Kowalski", "M-1004", "555-0178"},
	{"Aiko Tanaka", "M-1005", ""},
	{"Sam Whitfield", "M-1006", "555-0192"},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/LibraDesk/data")
	}

	dbPath := filepath.Join(dataPath, "library.db")
	fmt.Printf("Opening database at: %s\n", dbPath)

	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	s, err := store.Open(dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	now := time.Now()
	rng := rand.New(rand.NewSource(now.UnixNano()))

	books, units := seedCatalog(ctx, s, now)
	borrowers := seedMembers(ctx, s, now)

	if *withLoans {
		seedLoans(ctx, s, rng, books, units, borrowers, now)
	}

	fmt.Printf("\nDone: %d books, %d copies, %d members\n", len(books), len(units), len(borrowers))
}

func seedCatalog(ctx context.Context, s *store.Store, now time.Time) ([]*domain.Book, map[string][]*domain.Unit) {
	books := make([]*domain.Book, 0, len(catalog))
	units := make(map[string][]*domain.Unit, len(catalog))

	for _, sb := range catalog {
		book := &domain.Book{
			ID:            id.MustGenerate("book"),
			Title:         sb.title,
			Author:        sb.author,
			ISBN:          sb.isbn,
			Genre:         sb.genre,
			PublishedYear: sb.year,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.CreateBook(ctx, book); err != nil {
			log.Fatalf("Failed to create book %q: %v", sb.title, err)
		}

		for range sb.copies {
			unit := &domain.Unit{
				ID:        id.MustGenerate("unit"),
				BookID:    book.ID,
				Status:    domain.UnitStatusAvailable,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.CreateUnit(ctx, unit); err != nil {
				log.Fatalf("Failed to create copy of %q: %v", sb.title, err)
			}
			units[book.ID] = append(units[book.ID], unit)
		}

		fmt.Printf("  %s (%d copies)\n", sb.title, sb.copies)
		books = append(books, book)
	}

	return books, units
}

func seedMembers(ctx context.Context, s *store.Store, now time.Time) []*domain.Borrower {
	borrowers := make([]*domain.Borrower, 0, len(members))

	for _, m := range members {
		b := &domain.Borrower{
			ID:        id.MustGenerate("borrower"),
			Name:      m.name,
			Email:     m.memberID + "@members.example.org",
			Phone:     m.phone,
			MemberID:  m.memberID,
			JoinDate:  now,
			Status:    domain.BorrowerStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.CreateBorrower(ctx, b); err != nil {
			log.Fatalf("Failed to create member %s: %v", m.memberID, err)
		}
		fmt.Printf("  %s (%s)\n", m.name, m.memberID)
		borrowers = append(borrowers, b)
	}

	return borrowers
}

// seedLoans checks out one copy per member where stock allows. The first
// two loans are backdated past their due date so the overdue views and
// dashboard counters light up immediately.
func seedLoans(ctx context.Context, s *store.Store, rng *rand.Rand, books []*domain.Book, units map[string][]*domain.Unit, borrowers []*domain.Borrower, now time.Time) {
	fmt.Println("\nOpening loans:")

	created := 0
	for i, b := range borrowers {
		book := books[rng.Intn(len(books))]

		var unit *domain.Unit
		for _, u := range units[book.ID] {
			if u.Status == domain.UnitStatusAvailable {
				unit = u
				break
			}
		}
		if unit == nil {
			continue
		}

		checkout := now
		if i < 2 {
			// Backdate so the loan is already overdue
			checkout = now.AddDate(0, 0, -(domain.DefaultLoanPeriodDays + 3 + rng.Intn(7)))
		}
		due := checkout.AddDate(0, 0, domain.DefaultLoanPeriodDays)

		if err := s.ClaimUnit(ctx, unit.ID, now); err != nil {
			log.Fatalf("Failed to claim copy of %q: %v", book.Title, err)
		}
		unit.Status = domain.UnitStatusLoaned

		loan := &domain.Loan{
			ID:           id.MustGenerate("loan"),
			UnitID:       unit.ID,
			BookID:       book.ID,
			BorrowerID:   b.ID,
			Status:       domain.LoanStatusActive,
			CheckoutDate: checkout,
			DueDate:      due,
			CreatedAt:    checkout,
			UpdatedAt:    checkout,
		}
		if err := s.CreateLoan(ctx, loan); err != nil {
			log.Fatalf("Failed to create loan for %s: %v", b.MemberID, err)
		}
		if err := s.IncrementLoanCounts(ctx, b.ID, now); err != nil {
			log.Fatalf("Failed to update loan counts for %s: %v", b.MemberID, err)
		}

		status := "due " + due.Format(time.DateOnly)
		if domain.DateOf(due).Before(domain.DateOf(now)) {
			status = "OVERDUE since " + due.Format(time.DateOnly)
		}
		fmt.Printf("  %s -> %q (%s)\n", b.MemberID, book.Title, status)
		created++
	}

	fmt.Printf("Opened %d loans\n", created)
}
