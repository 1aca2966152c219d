package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dmcore/internal/broker"
	"dmcore/internal/domain"
)

// Profiles exposes the profile collaborator and publishes presence changes
// on the profile topic.
type Profiles struct {
	repo   domain.ProfileRepository
	broker broker.Broker
	log    *slog.Logger
	now    func() time.Time
}

func NewProfiles(repo domain.ProfileRepository, b broker.Broker, log *slog.Logger) *Profiles {
	return &Profiles{repo: repo, broker: b, log: log, now: time.Now}
}

func (p *Profiles) Get(ctx context.Context, uid string) (*domain.Profile, error) {
	return p.repo.GetProfile(ctx, uid)
}

// SetOnline stores the presence flag and publishes the new snapshot.
func (p *Profiles) SetOnline(ctx context.Context, uid string, online bool) error {
	now := p.now().UTC()
	if err := p.repo.SetOnlineStatus(ctx, uid, online, now); err != nil {
		return fmt.Errorf("set online status: %w", err)
	}
	prof, err := p.repo.GetProfile(ctx, uid)
	if err != nil {
		return fmt.Errorf("reload profile: %w", err)
	}
	if err := p.broker.Publish(ctx, domain.Event{
		Kind:    domain.EventProfileUpdated,
		Topic:   domain.ProfileTopic(uid),
		UserID:  uid,
		Profile: prof,
		At:      now,
	}); err != nil {
		p.log.Warn("publish profile failed", "user_id", uid, "error", err)
	}
	return nil
}
