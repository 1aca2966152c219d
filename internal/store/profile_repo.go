package store

import (
	"context"
	"database/sql"
	"time"

	"dmcore/internal/domain"
)

// ProfileRepo stores the profile snapshots consumed for display and presence.
type ProfileRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewProfileRepo(db *sql.DB, dialect Dialect) *ProfileRepo {
	return &ProfileRepo{db: db, dialect: dialect}
}

var _ domain.ProfileRepository = (*ProfileRepo)(nil)

func (r *ProfileRepo) GetProfile(ctx context.Context, uid string) (*domain.Profile, error) {
	p := &domain.Profile{}
	var lastSeen int64
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`
		SELECT id, display_name, picture_url, is_online, last_seen
		FROM profiles WHERE id = ?
	`), uid).Scan(&p.ID, &p.DisplayName, &p.PictureURL, &p.Online, &lastSeen)
	if err != nil {
		return nil, notFoundOr("get profile", err)
	}
	p.LastSeen = fromMicros(lastSeen)
	return p, nil
}

// Upsert creates or replaces the display fields of a profile. Presence
// fields of an existing row are left untouched.
func (r *ProfileRepo) Upsert(ctx context.Context, p *domain.Profile) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
		INSERT INTO profiles (id, display_name, picture_url, is_online, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET display_name = excluded.display_name, picture_url = excluded.picture_url
	`), p.ID, p.DisplayName, p.PictureURL, p.Online, toMicros(p.LastSeen))
	if err != nil {
		return transient("upsert profile", err)
	}
	return nil
}

func (r *ProfileRepo) SetOnlineStatus(ctx context.Context, uid string, online bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
		INSERT INTO profiles (id, display_name, picture_url, is_online, last_seen)
		VALUES (?, '', '', ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET is_online = excluded.is_online, last_seen = excluded.last_seen
	`), uid, online, toMicros(at))
	if err != nil {
		return transient("set online status", err)
	}
	return nil
}
