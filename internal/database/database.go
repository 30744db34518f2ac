package database

import (
	"log"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Connect opens the SQLite database at the given path. Foreign keys are
// enabled in the DSN so every connection enforces them, and stock history
// rows follow their medication on delete.
func Connect(path string) *sqlx.DB {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)"
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return db
}
