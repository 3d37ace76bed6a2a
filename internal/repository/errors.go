package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isDuplicate reports whether err is a unique-constraint violation.
//
// GORM's TranslateError maps these to gorm.ErrDuplicatedKey for the postgres
// dialector, but the sqlite dialector only recognizes go-sqlite3 error types
// and misses the modernc driver we run on, so its message is matched as a
// fallback.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
