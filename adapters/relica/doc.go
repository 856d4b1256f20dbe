// Package relica provides the SQL implementation of peerchat.MessageRepository
// using the Relica query builder (github.com/coregx/relica).
//
// MySQL, PostgreSQL and SQLite are supported. Apply the schema with
// peerchat.ApplyMigrations before use.
//
// Example usage:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/peerchat"
//	    "github.com/coregx/peerchat/adapters/relica"
//	    _ "github.com/mattn/go-sqlite3"
//	)
//
//	db, err := sql.Open("sqlite3", "chat.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := peerchat.ApplyMigrations(ctx, db, "sqlite3", ""); err != nil {
//	    log.Fatal(err)
//	}
//
//	repos := relica.NewRepositories(db, "sqlite3")
//	store, err := peerchat.NewMessageStore(
//	    peerchat.WithStoreRepository(repos.Message),
//	    peerchat.WithStoreLogger(logger),
//	)
package relica
