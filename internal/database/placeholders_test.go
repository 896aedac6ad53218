package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertPlaceholders(t *testing.T) {
	t.Run("postgres numbers placeholders", func(t *testing.T) {
		q := ConvertPlaceholders("postgres", "SELECT * FROM page WHERE site_id = ? AND slug = ?")
		assert.Equal(t, "SELECT * FROM page WHERE site_id = $1 AND slug = $2", q)
	})

	t.Run("mysql passthrough", func(t *testing.T) {
		q := ConvertPlaceholders("mysql", "SELECT 1 WHERE a = ?")
		assert.Equal(t, "SELECT 1 WHERE a = ?", q)
	})

	t.Run("sqlite passthrough", func(t *testing.T) {
		q := ConvertPlaceholders("sqlite3", "INSERT INTO t VALUES (?, ?)")
		assert.Equal(t, "INSERT INTO t VALUES (?, ?)", q)
	})

	t.Run("no placeholders", func(t *testing.T) {
		q := ConvertPlaceholders("postgres", "SELECT 1")
		assert.Equal(t, "SELECT 1", q)
	})
}

func TestRebinder(t *testing.T) {
	r := Rebinder{Driver: "postgres"}
	assert.Equal(t, "DELETE FROM site WHERE id = $1", r.Q("DELETE FROM site WHERE id = ?"))
}
