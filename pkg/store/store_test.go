package store

import (
	"database/sql"

	"kestrel-go/pkg/database"
)

func newTestPostgres(db *sql.DB) *database.PostgresClient {
	return database.NewPostgresClientFromDB(db)
}
