package db

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsForeignKeyErr(t *testing.T) {
	assert.False(t, IsForeignKeyErr(nil))
	assert.True(t, IsForeignKeyErr(gorm.ErrForeignKeyViolated))
	assert.True(t, IsForeignKeyErr(errors.New("FOREIGN KEY constraint failed")))
	assert.True(t, IsForeignKeyErr(errors.New(`ERROR: insert or update on table "dataset_records" violates foreign key constraint`)))
	assert.False(t, IsForeignKeyErr(errors.New("deadlock")))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "100!%", EscapeLike("100%"))
	assert.Equal(t, "a!_b", EscapeLike("a_b"))
	assert.Equal(t, "wow!!", EscapeLike("wow!"))
	assert.Equal(t, "cod", EscapeLike("cod"))
}
