package store

import (
	"context"
	"database/sql"

	"github.com/libradesk/libradesk-server/internal/domain"
	"github.com/libradesk/libradesk-server/internal/errors"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, title, author, isbn, genre, published_year,
	description, cover_url, cover_blurhash, created_at, updated_at`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book

	var (
		isbn      sql.NullString
		genre     sql.NullString
		pubYear   sql.NullInt64
		desc      sql.NullString
		coverURL  sql.NullString
		blurhash  sql.NullString
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&isbn,
		&genre,
		&pubYear,
		&desc,
		&coverURL,
		&blurhash,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.ISBN = isbn.String
	b.Genre = genre.String
	b.PublishedYear = int(pubYear.Int64)
	b.Description = desc.String
	b.CoverURL = coverURL.String
	b.CoverBlurhash = blurhash.String

	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// CreateBook inserts a new catalog title.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, isbn, genre, published_year,
			description, cover_url, cover_blurhash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.Title,
		book.Author,
		nullString(book.ISBN),
		nullString(book.Genre),
		nullInt(book.PublishedYear),
		nullString(book.Description),
		nullString(book.CoverURL),
		nullString(book.CoverBlurhash),
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.AlreadyExists("book already exists").WithCause(err)
		}
		return errors.Wrap(err, errors.CodeInternal, "insert book")
	}
	return nil
}

// GetBook retrieves a catalog title by ID.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`, id)

	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("book %s not found", id)
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get book")
	}
	return book, nil
}

// ListBooksFilter narrows ListBooks results.
type ListBooksFilter struct {
	Search string // matches title, author, or ISBN (substring, case-insensitive)
	Genre  string
}

// ListBooks returns catalog titles with their unit counts folded in,
// ordered by title.
func (s *Store) ListBooks(ctx context.Context, filter ListBooksFilter, params PaginationParams) (*PaginatedResult[domain.BookWithAvailability], error) {
	params.Validate()

	where := "WHERE 1=1"
	args := []any{}
	if filter.Search != "" {
		where += ` AND (b.title LIKE ? COLLATE NOCASE
			OR b.author LIKE ? COLLATE NOCASE
			OR b.isbn LIKE ?)`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Genre != "" {
		where += " AND b.genre = ?"
		args = append(args, filter.Genre)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM books b " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "count books")
	}

	query := `
		SELECT b.id, b.title, b.author, b.isbn, b.genre, b.published_year,
			b.description, b.cover_url, b.cover_blurhash, b.created_at, b.updated_at,
			COUNT(u.id) AS total_units,
			COALESCE(SUM(CASE WHEN u.status = 'available' THEN 1 ELSE 0 END), 0) AS available_units
		FROM books b
		LEFT JOIN book_units u ON u.book_id = b.id ` +
		where + `
		GROUP BY b.id
		ORDER BY b.title COLLATE NOCASE
		LIMIT ? OFFSET ?`
	args = append(args, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list books")
	}
	defer rows.Close()

	items := []domain.BookWithAvailability{}
	for rows.Next() {
		var (
			b         domain.BookWithAvailability
			isbn      sql.NullString
			genre     sql.NullString
			pubYear   sql.NullInt64
			desc      sql.NullString
			coverURL  sql.NullString
			blurhash  sql.NullString
			createdAt string
			updatedAt string
		)
		err := rows.Scan(
			&b.ID, &b.Title, &b.Author, &isbn, &genre, &pubYear,
			&desc, &coverURL, &blurhash, &createdAt, &updatedAt,
			&b.TotalUnits, &b.AvailableUnits,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "scan book")
		}
		b.ISBN = isbn.String
		b.Genre = genre.String
		b.PublishedYear = int(pubYear.Int64)
		b.Description = desc.String
		b.CoverURL = coverURL.String
		b.CoverBlurhash = blurhash.String
		if b.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "parse book created_at")
		}
		if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "parse book updated_at")
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "iterate books")
	}

	return &PaginatedResult[domain.BookWithAvailability]{
		Items:   items,
		Total:   total,
		HasMore: params.Offset+len(items) < total,
	}, nil
}

// UpdateBook updates a catalog title's descriptive fields.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE books
		SET title = ?, author = ?, isbn = ?, genre = ?, published_year = ?,
			description = ?, cover_url = ?, cover_blurhash = ?, updated_at = ?
		WHERE id = ?`,
		book.Title,
		book.Author,
		nullString(book.ISBN),
		nullString(book.Genre),
		nullInt(book.PublishedYear),
		nullString(book.Description),
		nullString(book.CoverURL),
		nullString(book.CoverBlurhash),
		formatTime(book.UpdatedAt),
		book.ID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "update book")
	}
	return requireRowAffected(res, "book", book.ID)
}

// DeleteBook removes a catalog title. The service layer guarantees no
// loaned or maintenance units remain; remaining available units are
// removed first to satisfy the foreign key.
func (s *Store) DeleteBook(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM book_units WHERE book_id = ? AND status = 'available'`, id); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete book units")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete book")
	}
	return requireRowAffected(res, "book", id)
}

// nullInt returns a sql.NullInt64 from an int, zero meaning NULL.
func nullInt(n int) sql.NullInt64 {
	if n == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

// requireRowAffected converts a zero-row update/delete into NotFound.
func requireRowAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "rows affected")
	}
	if n == 0 {
		return errors.NotFoundf("%s %s not found", entity, id)
	}
	return nil
}
