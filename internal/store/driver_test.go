package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexpMatch(t *testing.T) {
	ok, err := regexpMatch(`^\*\.`, "*.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = regexpMatch(`^\*\.`, []byte("*"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = regexpMatch("a", nil)
	require.NoError(t, err)
	assert.False(t, ok, "NULL never matches")

	_, err = regexpMatch("(", "x")
	assert.Error(t, err)

	_, err = regexpMatch(int64(1), "x")
	assert.Error(t, err)
}

func TestDriverFor(t *testing.T) {
	for _, name := range []string{"", "sqlite", "sqlite3"} {
		got, err := driverFor(name)
		require.NoError(t, err)
		assert.Equal(t, SQLiteDriver, got)
	}
	for _, name := range []string{"pgx", "postgres", "postgresql"} {
		got, err := driverFor(name)
		require.NoError(t, err)
		assert.Equal(t, "pgx", got)
	}
	_, err := driverFor("mysql")
	assert.Error(t, err)
}
