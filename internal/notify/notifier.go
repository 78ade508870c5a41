package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trade_engine/internal/models"
	"trade_engine/internal/position"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

// История сделок для команды /trades.
type tradeHistory interface {
	TradesForUser(ctx context.Context, userID int64, limit int) ([]models.TradeRecord, error)
}

// Telegram — пассивный нотифайер в админский чат + две read-only команды.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	book   *position.Book
	ledger tradeHistory
}

func NewTelegram(token string, chatID int64, book *position.Book, ledger tradeHistory) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID, book: book, ledger: ledger}, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// /positions — срез книги позиций.
func (t *Telegram) handlePositions(ctx context.Context) {
	if t.book == nil {
		t.Send("❗️ Книга позиций не инициализирована")
		return
	}
	all, err := t.book.All(ctx)
	if err != nil {
		t.Sendf("❗️ Ошибка чтения позиций: %v", err)
		return
	}
	if len(all) == 0 {
		t.Send("📭 Открытых позиций нет")
		return
	}

	var b strings.Builder
	b.WriteString("📊 Открытые позиции:\n")
	for key, p := range all {
		fmt.Fprintf(&b, "- user=%d %s [%s] qty=%v @ %.8f\n",
			key.UserID, key.Symbol, p.Side, p.Qty, p.EntryPrice)
	}
	t.Send(b.String())
}

// /trades <user_id> — хвост леджера юзера.
func (t *Telegram) handleTrades(ctx context.Context, args string) {
	if t.ledger == nil {
		t.Send("❗️ Леджер не инициализирован")
		return
	}
	var uid int64
	if _, err := fmt.Sscanf(strings.TrimSpace(args), "%d", &uid); err != nil {
		t.Send("Формат: /trades <user_id>")
		return
	}
	trades, err := t.ledger.TradesForUser(ctx, uid, 10)
	if err != nil {
		t.Sendf("❗️ Ошибка чтения сделок: %v", err)
		return
	}
	if len(trades) == 0 {
		t.Sendf("📭 Сделок у %d нет", uid)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Последние сделки %d:\n", uid)
	for _, tr := range trades {
		fmt.Fprintf(&b, "- %s %s %s qty=%v @ %.8f\n",
			tr.TS.Format("01-02 15:04"), tr.Side, tr.Symbol, tr.Qty, tr.Price)
	}
	t.Send(b.String())
}

// Start: long-polling только ради read-only команд из админского чата.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "positions":
					go t.handlePositions(ctx)
				case "trades":
					go t.handleTrades(ctx, upd.Message.CommandArguments())
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {}

// Stdout — заглушка для DRY_RUN и локальной отладки.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { log.Println(msg) }
func (s *Stdout) Sendf(format string, args ...any) { log.Printf(format, args...) }
