package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"trade_engine/internal/models"
)

// Trades — append-only леджер в trades.json. Записи не мутируются.
type Trades struct {
	path string
	mu   sync.Mutex
}

func NewTrades(dir string) *Trades {
	return &Trades{path: filepath.Join(dir, "trades.json")}
}

func (t *Trades) AppendTrade(ctx context.Context, trade models.TradeRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	trades, err := t.readLocked()
	if err != nil {
		return err
	}
	trades = append(trades, trade)

	b, err := sonic.MarshalIndent(trades, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(t.path, b)
}

// TradesForUser — хвост истории юзера, limit <= 0 = без ограничения.
func (t *Trades) TradesForUser(ctx context.Context, userID int64, limit int) ([]models.TradeRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	trades, err := t.readLocked()
	if err != nil {
		return nil, err
	}

	out := make([]models.TradeRecord, 0, len(trades))
	for _, tr := range trades {
		if tr.UserID == userID {
			out = append(out, tr)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (t *Trades) readLocked() ([]models.TradeRecord, error) {
	b, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read %s", t.path)
	}

	var trades []models.TradeRecord
	if err := sonic.Unmarshal(b, &trades); err != nil {
		return nil, errors.Wrapf(err, "decode %s", t.path)
	}
	return trades, nil
}
