package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// builder returns a statement builder using the placeholder style of driver.
func builder(driver string) sq.StatementBuilderType {
	if driver == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func queryIDs(db *sql.DB, query sq.SelectBuilder) ([]uint, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query: %w", err)
	}

	rows, err := db.Query(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var ids []uint
	for rows.Next() {
		var id uint
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return ids, nil
}

// ExpiredGalleryIDs returns up to limit galleries whose expiration date is
// before now, oldest first.
func ExpiredGalleryIDs(db *sql.DB, driver string, now time.Time, limit uint64) ([]uint, error) {
	query := builder(driver).Select("id").
		From("galleries").
		Where(sq.NotEq{"expiration_date": nil}).
		Where(sq.Lt{"expiration_date": now.UTC()}).
		OrderBy("expiration_date ASC", "id ASC").
		Limit(limit)

	ids, err := queryIDs(db, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired galleries: %w", err)
	}
	return ids, nil
}

// GalleriesDueForReminder returns galleries that expire within lead of now and
// have not been reminded yet.
func GalleriesDueForReminder(db *sql.DB, driver string, now time.Time, lead time.Duration) ([]uint, error) {
	query := builder(driver).Select("id").
		From("galleries").
		Where(sq.Eq{"reminder_sent_at": nil}).
		Where(sq.NotEq{"expiration_date": nil}).
		Where(sq.GtOrEq{"expiration_date": now.UTC()}).
		Where(sq.Lt{"expiration_date": now.Add(lead).UTC()}).
		OrderBy("id ASC")

	ids, err := queryIDs(db, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list galleries due for reminder: %w", err)
	}
	return ids, nil
}
