// Package backend selects and opens the record store the server runs on.
package backend

import (
	"github.com/krizad/baht-saving-project/internal/config"
	ports "github.com/krizad/baht-saving-project/internal/sheets"
)

// Type names a record store implementation.
type Type string

const (
	Memory Type = config.BackendMemory
	Sheets Type = config.BackendSheets
	SQLite Type = config.BackendSQLite
)

func (t Type) IsValid() bool {
	switch t {
	case Memory, Sheets, SQLite:
		return true
	}
	return false
}

func (t Type) String() string {
	return string(t)
}

// Types returns every supported backend.
func Types() []Type {
	return []Type{Memory, Sheets, SQLite}
}

// CleanupFunc releases what a backend holds open.
type CleanupFunc func() error

// Result is an opened record store and its cleanup.
type Result struct {
	Type    Type
	Store   ports.Store
	Cleanup CleanupFunc
}

// Close runs the cleanup if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}
