package store

import (
	"context"
	"database/sql"
	"time"

	"dmcore/internal/domain"
)

// BlockRepo reads the directed blocker -> blocked relation owned by the
// moderation system.
type BlockRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewBlockRepo(db *sql.DB, dialect Dialect) *BlockRepo {
	return &BlockRepo{db: db, dialect: dialect}
}

var _ domain.BlockRepository = (*BlockRepo)(nil)

func (r *BlockRepo) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`
		SELECT COUNT(*) FROM blocks
		WHERE (blocker_id = ? AND blocked_id = ?)
		   OR (blocker_id = ? AND blocked_id = ?)
	`), a, b, b, a).Scan(&count)
	if err != nil {
		return false, transient("check block", err)
	}
	return count > 0, nil
}

func (r *BlockRepo) Block(ctx context.Context, blocker, blocked string) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
		INSERT INTO blocks (blocker_id, blocked_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING
	`), blocker, blocked, time.Now().UnixMicro())
	if err != nil {
		return transient("block", err)
	}
	return nil
}

func (r *BlockRepo) Unblock(ctx context.Context, blocker, blocked string) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
		DELETE FROM blocks WHERE blocker_id = ? AND blocked_id = ?
	`), blocker, blocked)
	if err != nil {
		return transient("unblock", err)
	}
	return nil
}
