//go:build !integration

package telegram

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"channelcast/internal/config"
	"channelcast/internal/infra/i18n"
)

const testBotID = 999

type apiCall struct {
	Method string
	Form   url.Values
}

// fakeTelegram is a minimal Bot API server. Handlers keyed by method override
// the default "ok" answer.
type fakeTelegram struct {
	mu       sync.Mutex
	calls    []apiCall
	handlers map[string]func(form url.Values) (int, string)
	srv      *httptest.Server
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()
	f := &fakeTelegram{handlers: map[string]func(url.Values) (int, string){}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTelegram) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := path.Base(r.URL.Path)
	f.mu.Lock()
	if method != "getMe" {
		f.calls = append(f.calls, apiCall{Method: method, Form: r.PostForm})
	}
	h := f.handlers[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if method == "getMe" {
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":999,"is_bot":true,"first_name":"Cast","username":"cast_bot"}}`)
		return
	}
	if h != nil {
		code, body := h(r.PostForm)
		w.WriteHeader(code)
		_, _ = io.WriteString(w, body)
		return
	}
	_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`)
}

func (f *fakeTelegram) callsTo(method, chatID string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if (method == "" || c.Method == method) && (chatID == "" || c.Form.Get("chat_id") == chatID) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTelegram) sentTo(chatID string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiCall
	for _, c := range f.calls {
		if c.Form.Get("chat_id") == chatID {
			out = append(out, c)
		}
	}
	return out
}

func apiError(code int, desc string) (int, string) {
	b, _ := json.Marshal(map[string]interface{}{"ok": false, "error_code": code, "description": desc})
	return http.StatusOK, string(b)
}

func testTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	return tr
}

func newTestBot(t *testing.T, f *fakeTelegram) *Bot {
	t.Helper()
	api, err := tgbotapi.NewBotAPIWithClient("TEST", f.srv.URL+"/bot%s/%s", f.srv.Client())
	if err != nil {
		t.Fatalf("NewBotAPIWithClient: %v", err)
	}
	logger := zerolog.New(io.Discard)
	return newBotWithAPI(api, &config.BotConfig{Workers: 2}, testTranslator(t), &logger)
}
