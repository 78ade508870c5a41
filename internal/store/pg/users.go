package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"trade_engine/internal/models"
	"trade_engine/pkg/db"
)

// Users — pg-стор юзеров. Settings лежат JSONB-блобом с исходными ключами.
type Users struct {
	tm *db.PgTxManager
}

func NewUsers(tm *db.PgTxManager) *Users {
	return &Users{tm: tm}
}

func (u *Users) Save(ctx context.Context, user *models.UserSettings) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Users.Save: %w", err)
		}
	}()

	var settings []byte
	settings, err = sonic.Marshal(user.Settings)
	if err != nil {
		return err
	}

	return u.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO engine_users (user_id, name, api_key, api_secret, sub_until, settings)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id) DO UPDATE SET
				name = EXCLUDED.name,
				api_key = EXCLUDED.api_key,
				api_secret = EXCLUDED.api_secret,
				sub_until = EXCLUDED.sub_until,
				settings = EXCLUDED.settings`,
			user.UserID, user.Name, user.APIKey, user.APISecret, user.SubUntil, settings)
		return err
	})
}

func (u *Users) Get(ctx context.Context, userID int64) (user *models.UserSettings, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Users.Get: %w", err)
		}
	}()

	err = u.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, user_id, name, api_key, api_secret, sub_until, settings
			FROM engine_users WHERE user_id = $1`, userID)
		var scanErr error
		user, scanErr = scanUser(row)
		if scanErr == pgx.ErrNoRows {
			user = nil
			return nil
		}
		return scanErr
	})
	return user, err
}

// ListEligible — живая подписка + оба ключа.
func (u *Users) ListEligible(ctx context.Context, now time.Time) (users []*models.UserSettings, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Users.ListEligible: %w", err)
		}
	}()

	err = u.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, qErr := tx.Query(ctx, `
			SELECT id, user_id, name, api_key, api_secret, sub_until, settings
			FROM engine_users
			WHERE sub_until IS NOT NULL AND sub_until > $1
			  AND api_key <> '' AND api_secret <> ''
			ORDER BY user_id`, now)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		for rows.Next() {
			us, sErr := scanUser(rows)
			if sErr != nil {
				return sErr
			}
			users = append(users, us)
		}
		return rows.Err()
	})
	return users, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.UserSettings, error) {
	var (
		us       models.UserSettings
		subUntil *time.Time
		settings []byte
	)
	if err := row.Scan(&us.ID, &us.UserID, &us.Name, &us.APIKey, &us.APISecret, &subUntil, &settings); err != nil {
		return nil, err
	}
	us.SubUntil = subUntil
	if len(settings) > 0 {
		if err := sonic.Unmarshal(settings, &us.Settings); err != nil {
			return nil, err
		}
	}
	return &us, nil
}
