//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing/fstest"

	"github.com/rs/zerolog"

	"channelcast/internal/domain"
	"channelcast/internal/domain/model"
	"channelcast/internal/domain/ports/adapter"
	"channelcast/internal/domain/ports/repository"
	"channelcast/internal/infra/i18n"
)

// =============================
// Adapters
// =============================

type sentItem struct {
	ChatID int64
	Item   model.DraftItem
}

type sentMessage struct {
	ChatID int64
	Text   string
}

// MockTelegramBot records every send. Func fields override behaviour per test.
type MockTelegramBot struct {
	mu       sync.Mutex
	Items    []sentItem
	Messages []sentMessage

	SendItemFunc    func(ctx context.Context, chatID int64, item model.DraftItem) error
	SendMessageFunc func(ctx context.Context, chatID int64, text string) error
	ResolveChatFunc func(ctx context.Context, ref string) (model.ChatInfo, error)
	BotStatusFunc   func(ctx context.Context, chatID int64) (model.MemberStatus, error)
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func (m *MockTelegramBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if m.SendMessageFunc != nil {
		if err := m.SendMessageFunc(ctx, chatID, text); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *MockTelegramBot) SendItem(ctx context.Context, chatID int64, item model.DraftItem) error {
	if m.SendItemFunc != nil {
		if err := m.SendItemFunc(ctx, chatID, item); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Items = append(m.Items, sentItem{ChatID: chatID, Item: item})
	return nil
}

func (m *MockTelegramBot) ResolveChat(ctx context.Context, ref string) (model.ChatInfo, error) {
	if m.ResolveChatFunc != nil {
		return m.ResolveChatFunc(ctx, ref)
	}
	return model.ChatInfo{}, domain.ErrTargetUnreachable
}

func (m *MockTelegramBot) BotStatus(ctx context.Context, chatID int64) (model.MemberStatus, error) {
	if m.BotStatusFunc != nil {
		return m.BotStatusFunc(ctx, chatID)
	}
	return model.StatusAdministrator, nil
}

func (m *MockTelegramBot) itemsTo(chatID int64) []model.DraftItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DraftItem
	for _, s := range m.Items {
		if s.ChatID == chatID {
			out = append(out, s.Item)
		}
	}
	return out
}

// =============================
// Repositories
// =============================

type bindingKey struct{ owner, channel int64 }

// MockChannelRepo is an in-memory channel directory.
type MockChannelRepo struct {
	mu   sync.Mutex
	rows map[bindingKey]model.ChannelBinding

	Err        error // returned by every call when set
	RefreshErr error
	SeenTx     []repository.Tx // tx handles passed to writes that accept one
}

var _ repository.ChannelRepository = (*MockChannelRepo)(nil)

func NewMockChannelRepo() *MockChannelRepo {
	return &MockChannelRepo{rows: make(map[bindingKey]model.ChannelBinding)}
}

func (r *MockChannelRepo) seed(owner, channel int64, title string) {
	b, _ := model.NewChannelBinding(owner, channel, title, "")
	_ = r.Upsert(context.Background(), repository.NoTX, b)
}

func (r *MockChannelRepo) Upsert(ctx context.Context, tx repository.Tx, b *model.ChannelBinding) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx != nil {
		r.SeenTx = append(r.SeenTx, tx)
	}
	k := bindingKey{b.OwnerID, b.ChannelID}
	if cur, ok := r.rows[k]; ok {
		b.AddedAt = cur.AddedAt
	}
	r.rows[k] = *b
	return nil
}

func (r *MockChannelRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID int64) ([]*model.ChannelBinding, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ChannelBinding
	for k, v := range r.rows {
		if k.owner == ownerID {
			cp := v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ChannelID < out[j].ChannelID
	})
	return out, nil
}

func (r *MockChannelRepo) Remove(ctx context.Context, tx repository.Tx, ownerID, channelID int64) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := bindingKey{ownerID, channelID}
	_, ok := r.rows[k]
	delete(r.rows, k)
	return ok, nil
}

func (r *MockChannelRepo) RefreshChannel(ctx context.Context, tx repository.Tx, channelID int64, title, username string) (int64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	if r.RefreshErr != nil {
		return 0, r.RefreshErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx != nil {
		r.SeenTx = append(r.SeenTx, tx)
	}
	var n int64
	for k, v := range r.rows {
		if k.channel == channelID {
			v.Title, v.Username = title, username
			r.rows[k] = v
			n++
		}
	}
	return n, nil
}

// MockTxManager hands fn a marker handle and reports fn's error, like a rollback would.
type MockTxManager struct {
	Calls int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

const mockTx = "tx"

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	return fn(ctx, mockTx)
}

func (r *MockChannelRepo) RemoveChannel(ctx context.Context, tx repository.Tx, channelID int64) (int64, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.rows {
		if k.channel == channelID {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

func (r *MockChannelRepo) CountByOwner(ctx context.Context, tx repository.Tx, ownerID int64) (int, error) {
	l, err := r.ListByOwner(ctx, tx, ownerID)
	return len(l), err
}

func (r *MockChannelRepo) CountAll(ctx context.Context, tx repository.Tx) (int, error) {
	if r.Err != nil {
		return 0, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows), nil
}

func (r *MockChannelRepo) has(owner, channel int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[bindingKey{owner, channel}]
	return ok
}

var errStoreDown = errors.Join(domain.ErrStoreUnavailable, errors.New("db down"))

// =============================
// Helpers
// =============================

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator() *i18n.Translator {
	testFS := fstest.MapFS{
		"locales/en.yaml": {Data: []byte(`
channel_linked: "linked %s"
done_ok: "done"
`)},
	}
	translator, err := i18n.NewTranslator(testFS, "en")
	if err != nil {
		panic(err)
	}
	return translator
}
