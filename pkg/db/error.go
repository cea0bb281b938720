package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsForeignKeyErr reports whether err is a referential integrity violation,
// typically a child row written for a parent that was deleted concurrently.
func IsForeignKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "violates foreign key constraint"): // PostgreSQL 23503
		return true
	case strings.Contains(msg, "Error 1452"): // MySQL
		return true
	case strings.Contains(msg, "FOREIGN KEY constraint failed"): // SQLite
		return true
	}
	return false
}

// EscapeLike escapes LIKE wildcards so user input matches literally with ESCAPE '!'.
func EscapeLike(value string) string {
	replacer := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return replacer.Replace(value)
}
