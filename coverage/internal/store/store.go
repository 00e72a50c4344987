// Package store provides the SQLite persistence layer for coverage.
package store

import (
	"database/sql"

	"github.com/hazyhaar/tidbridge/dbopen"
)

// Store is the coverage database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the coverage SQLite database at path,
// applies the default pragmas and the coverage schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
