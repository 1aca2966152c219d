package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	q := `UPDATE messages SET text = ?, reactions = ? WHERE conversation_id = ? AND id = ?`

	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t,
		`UPDATE messages SET text = $1, reactions = $2 WHERE conversation_id = $3 AND id = $4`,
		Postgres.Rebind(q))
	assert.Equal(t, `SELECT 1`, Postgres.Rebind(`SELECT 1`))
}

func TestLockSuffix(t *testing.T) {
	assert.Empty(t, SQLite.LockSuffix, "sqlite serializes through a single connection")
	assert.Equal(t, " FOR UPDATE", Postgres.LockSuffix)
}
