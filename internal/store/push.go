package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/ourslists/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const subscriptionCols = `id, space_id, member, endpoint, p256dh_key, auth_key, device_name, created_at`

func scanSubscription(sc scanner) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := sc.Scan(&sub.ID, &sub.SpaceID, &sub.Member, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription registers a device. Re-subscribing an endpoint moves it
// to the given space and member and refreshes its keys.
func (s *PushStore) CreateSubscription(ctx context.Context, sub *model.PushSubscription) (*model.PushSubscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (`+subscriptionCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET space_id = excluded.space_id, member = excluded.member,
		 p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key, device_name = excluded.device_name`,
		sub.ID, sub.SpaceID, sub.Member, sub.Endpoint, sub.P256dhKey, sub.AuthKey, sub.DeviceName, utc(sub.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	return s.GetByEndpoint(ctx, sub.Endpoint)
}

func (s *PushStore) GetByEndpoint(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListBySpace(ctx context.Context, spaceID string) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionCols+` FROM push_subscriptions WHERE space_id = ? ORDER BY created_at ASC, id ASC`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by space: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// --- Notification preferences ---

// IsPreferenceEnabled reports whether member wants notifType in the space.
// Types without a stored preference are enabled.
func (s *PushStore) IsPreferenceEnabled(ctx context.Context, spaceID, member, notifType string) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled FROM notification_preferences WHERE space_id = ? AND member = ? AND notification_type = ?`,
		spaceID, member, notifType,
	).Scan(&enabled)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get notification preference: %w", err)
	}
	return enabled, nil
}

func (s *PushStore) SetPreference(ctx context.Context, p model.NotificationPreference) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_preferences (space_id, member, notification_type, enabled) VALUES (?, ?, ?, ?)
		 ON CONFLICT(space_id, member, notification_type) DO UPDATE SET enabled = excluded.enabled`,
		p.SpaceID, p.Member, p.NotificationType, p.Enabled,
	)
	if err != nil {
		return fmt.Errorf("set notification preference: %w", err)
	}
	return nil
}

// GetPreferences returns a preference for every notification type, filling
// in the enabled default for types never set.
func (s *PushStore) GetPreferences(ctx context.Context, spaceID, member string) ([]model.NotificationPreference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT notification_type, enabled FROM notification_preferences WHERE space_id = ? AND member = ?`,
		spaceID, member)
	if err != nil {
		return nil, fmt.Errorf("list notification preferences: %w", err)
	}
	defer rows.Close()

	stored := map[string]bool{}
	for rows.Next() {
		var typ string
		var enabled bool
		if err := rows.Scan(&typ, &enabled); err != nil {
			return nil, fmt.Errorf("scan notification preference: %w", err)
		}
		stored[typ] = enabled
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prefs := make([]model.NotificationPreference, 0, len(model.NotificationTypes))
	for _, typ := range model.NotificationTypes {
		enabled, ok := stored[typ]
		if !ok {
			enabled = true
		}
		prefs = append(prefs, model.NotificationPreference{
			SpaceID:          spaceID,
			Member:           member,
			NotificationType: typ,
			Enabled:          enabled,
		})
	}
	return prefs, nil
}
