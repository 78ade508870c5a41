package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"trade_engine/internal/models"
)

// Users — снапшот-стор юзеров в users.json. Кэш в памяти, на диск пишем
// целиком и атомарно (tmp + rename).
type Users struct {
	path string

	mu     sync.Mutex
	cache  map[int64]*models.UserSettings
	loaded bool
}

func NewUsers(dir string) *Users {
	return &Users{
		path:  filepath.Join(dir, "users.json"),
		cache: make(map[int64]*models.UserSettings),
	}
}

func (u *Users) Save(ctx context.Context, user *models.UserSettings) error {
	if user == nil {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.loadLocked(); err != nil {
		return err
	}
	u.cache[user.UserID] = cloneUser(user)
	return u.saveLocked()
}

func (u *Users) Get(ctx context.Context, userID int64) (*models.UserSettings, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.loadLocked(); err != nil {
		return nil, err
	}
	v, ok := u.cache[userID]
	if !ok {
		return nil, nil
	}
	return cloneUser(v), nil
}

func (u *Users) List(ctx context.Context) ([]*models.UserSettings, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.loadLocked(); err != nil {
		return nil, err
	}
	out := make([]*models.UserSettings, 0, len(u.cache))
	for _, v := range u.cache {
		out = append(out, cloneUser(v))
	}
	return out, nil
}

// ListEligible — юзеры с живой подпиской и обоими ключами.
func (u *Users) ListEligible(ctx context.Context, now time.Time) ([]*models.UserSettings, error) {
	all, err := u.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, v := range all {
		if v.Eligible(now) {
			out = append(out, v)
		}
	}
	return out, nil
}

// ---- storage format ----

type usersSnapshot struct {
	UpdatedAt time.Time              `json:"updated_at"`
	Users     []*models.UserSettings `json:"users"`
}

func (u *Users) loadLocked() error {
	if u.loaded {
		return nil
	}

	b, err := os.ReadFile(u.path)
	if err != nil {
		if os.IsNotExist(err) {
			u.loaded = true
			return nil
		}
		return errors.Wrapf(err, "read %s", u.path)
	}

	var snap usersSnapshot
	if err := sonic.Unmarshal(b, &snap); err != nil {
		return errors.Wrapf(err, "decode %s", u.path)
	}

	u.cache = make(map[int64]*models.UserSettings, len(snap.Users))
	for _, us := range snap.Users {
		if us == nil {
			continue
		}
		u.cache[us.UserID] = cloneUser(us)
	}

	u.loaded = true
	return nil
}

func (u *Users) saveLocked() error {
	users := make([]*models.UserSettings, 0, len(u.cache))
	for _, v := range u.cache {
		users = append(users, cloneUser(v))
	}

	snap := usersSnapshot{
		UpdatedAt: time.Now(),
		Users:     users,
	}
	b, err := sonic.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(u.path, b)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path) // атомарно
}

// clone чтобы никто извне не мутировал shared ptr
func cloneUser(in *models.UserSettings) *models.UserSettings {
	if in == nil {
		return nil
	}
	b, _ := sonic.Marshal(in)
	var out models.UserSettings
	_ = sonic.Unmarshal(b, &out)
	return &out
}
