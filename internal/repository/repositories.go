// Package repository handles all interactions with the record store.
//
// It holds the statement-level queries for each table and exposes them as
// methods, keeping SQL building away from the service layer. Every method
// runs on a connection the caller passes in, so the caller decides which
// connection or transaction the work belongs to.
package repository

import (
	"github.com/deppfellow/countstore/internal/app"
	"github.com/deppfellow/countstore/internal/record"
)

// Repositories is a container for all repository instances.
type Repositories struct {
	Records *RecordRepository
}

// NewRepositories constructs the repository container from the tables the
// application defined at startup.
func NewRepositories(a *app.App) (*Repositories, error) {
	tbl, err := a.Metadata.MustTable(record.TableName)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Records: NewRecordRepository(tbl, a.Logger),
	}, nil
}
