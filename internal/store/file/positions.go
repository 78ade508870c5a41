package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"trade_engine/internal/models"
)

// Positions — книга позиций в positions.json, ключ "uid:symbol".
// Отдельный файл, не поле юзера: гонки read-modify-write видны сразу.
type Positions struct {
	path string

	mu     sync.Mutex
	cache  map[string]*models.Position
	loaded bool
}

func NewPositions(dir string) *Positions {
	return &Positions{
		path:  filepath.Join(dir, "positions.json"),
		cache: make(map[string]*models.Position),
	}
}

func posKeyString(key models.PosKey) string {
	return fmt.Sprintf("%d:%s", key.UserID, key.Symbol)
}

func parsePosKey(s string) (models.PosKey, bool) {
	uid, sym, ok := strings.Cut(s, ":")
	if !ok {
		return models.PosKey{}, false
	}
	id, err := strconv.ParseInt(uid, 10, 64)
	if err != nil {
		return models.PosKey{}, false
	}
	return models.PosKey{UserID: id, Symbol: sym}, true
}

func (p *Positions) LoadPositions(ctx context.Context) (map[models.PosKey]*models.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.loadLocked(); err != nil {
		return nil, err
	}

	out := make(map[models.PosKey]*models.Position, len(p.cache))
	for k, v := range p.cache {
		key, ok := parsePosKey(k)
		if !ok || v == nil {
			continue
		}
		cp := *v
		out[key] = &cp
	}
	return out, nil
}

func (p *Positions) SavePosition(ctx context.Context, key models.PosKey, pos *models.Position) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.loadLocked(); err != nil {
		return err
	}

	if pos == nil {
		delete(p.cache, posKeyString(key))
	} else {
		cp := *pos
		p.cache[posKeyString(key)] = &cp
	}
	return p.saveLocked()
}

type positionsSnapshot struct {
	UpdatedAt time.Time                   `json:"updated_at"`
	Positions map[string]*models.Position `json:"positions"`
}

func (p *Positions) loadLocked() error {
	if p.loaded {
		return nil
	}

	b, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			p.loaded = true
			return nil
		}
		return errors.Wrapf(err, "read %s", p.path)
	}

	var snap positionsSnapshot
	if err := sonic.Unmarshal(b, &snap); err != nil {
		return errors.Wrapf(err, "decode %s", p.path)
	}

	p.cache = make(map[string]*models.Position, len(snap.Positions))
	for k, v := range snap.Positions {
		if v != nil {
			p.cache[k] = v
		}
	}
	p.loaded = true
	return nil
}

func (p *Positions) saveLocked() error {
	snap := positionsSnapshot{
		UpdatedAt: time.Now(),
		Positions: p.cache,
	}
	b, err := sonic.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(p.path, b)
}
