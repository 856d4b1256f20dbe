package relica

import (
	"database/sql"

	"github.com/coregx/peerchat"
)

// Repositories holds all repository implementations.
type Repositories struct {
	Message *MessageRepository
}

// NewRepositories creates all repository implementations using Relica.
//
// The db parameter should be an *sql.DB connected to MySQL, PostgreSQL, or SQLite.
// The driverName should be "mysql", "postgres", or "sqlite3".
// Tables use peerchat.DefaultTablePrefix.
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return NewRepositoriesWithPrefix(db, driverName, peerchat.DefaultTablePrefix)
}

// NewRepositoriesWithPrefix creates all repository implementations with a custom table prefix.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Message: NewMessageRepositoryWithPrefix(db, driverName, prefix),
	}
}

var (
	_ peerchat.MessageRepository = (*MessageRepository)(nil)
	_ peerchat.Pinger            = (*MessageRepository)(nil)
)
