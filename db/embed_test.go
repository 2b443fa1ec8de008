package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	got, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, got)

	assert.Equal(t, "migrations/001_schema.sql", got[0].Name)
	assert.Contains(t, got[0].SQL, "CREATE TABLE IF NOT EXISTS slots")
	assert.Contains(t, got[0].SQL, "CREATE TABLE IF NOT EXISTS cart_line_items")
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Name, got[i].Name)
	}
}
