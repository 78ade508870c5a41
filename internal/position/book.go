package position

import (
	"context"
	"sync"

	"trade_engine/internal/models"
)

// Store — персистентная книга позиций: отдельная таблица с составным ключом,
// а не вложенное поле в записи юзера.
type Store interface {
	LoadPositions(ctx context.Context) (map[models.PosKey]*models.Position, error)
	// pos == nil снимает позицию по ключу.
	SavePosition(ctx context.Context, key models.PosKey, pos *models.Position) error
}

// Book — in-memory арена позиций поверх Store. Переходы по одному ключу
// сериализуются: два цикла не могут одновременно купить по (user, symbol).
type Book struct {
	mu     sync.Mutex
	loaded bool
	pos    map[models.PosKey]*models.Position
	locks  map[models.PosKey]*sync.Mutex

	store Store
}

func NewBook(store Store) *Book {
	return &Book{
		pos:   make(map[models.PosKey]*models.Position),
		locks: make(map[models.PosKey]*sync.Mutex),
		store: store,
	}
}

func (b *Book) ensureLoaded(ctx context.Context) error {
	if b.loaded {
		return nil
	}
	if b.store != nil {
		loaded, err := b.store.LoadPositions(ctx)
		if err != nil {
			return err
		}
		for k, v := range loaded {
			if v != nil {
				b.pos[k] = v
			}
		}
	}
	b.loaded = true
	return nil
}

// keyLock — мьютекс на конкретный (user, symbol).
func (b *Book) keyLock(key models.PosKey) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[key]
	if !ok {
		l = &sync.Mutex{}
		b.locks[key] = l
	}
	return l
}

// Get — копия позиции, nil = FLAT.
func (b *Book) Get(ctx context.Context, key models.PosKey) (*models.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	p, ok := b.pos[key]
	if !ok || p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// set обновляет арену и пишет в стор. Ошибка стора отдаётся наверх,
// in-memory состояние уже новое: перезапись догонит на следующем цикле.
func (b *Book) set(ctx context.Context, key models.PosKey, pos *models.Position) error {
	b.mu.Lock()
	if err := b.ensureLoaded(ctx); err != nil {
		b.mu.Unlock()
		return err
	}
	if pos == nil {
		delete(b.pos, key)
	} else {
		cp := *pos
		b.pos[key] = &cp
	}
	b.mu.Unlock()

	if b.store == nil {
		return nil
	}
	return b.store.SavePosition(ctx, key, pos)
}

// All — копия всей арены (для /positions и health-отчёта).
func (b *Book) All(ctx context.Context) (map[models.PosKey]*models.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	out := make(map[models.PosKey]*models.Position, len(b.pos))
	for k, v := range b.pos {
		cp := *v
		out[k] = &cp
	}
	return out, nil
}

// OpenCount — сколько позиций открыто (для health-отчёта).
func (b *Book) OpenCount(ctx context.Context) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureLoaded(ctx); err != nil {
		return 0
	}
	return len(b.pos)
}
