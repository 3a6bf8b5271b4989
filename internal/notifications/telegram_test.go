package notifications

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramNotifier_SendAlert(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("tok", "42")
	n.baseURL = srv.URL
	require.NoError(t, n.SendAlert(context.Background(), LevelError, "session failed"))

	require.NotNil(t, got)
	assert.Equal(t, "/bottok/sendMessage", got.URL.Path)
	assert.Equal(t, "42", got.PostForm.Get("chat_id"))
	assert.Contains(t, got.PostForm.Get("text"), "🚨")
	assert.Contains(t, got.PostForm.Get("text"), "session failed")
}

func TestTelegramNotifier_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("bad", "42")
	n.baseURL = srv.URL
	assert.ErrorContains(t, n.SendAlert(context.Background(), LevelInfo, "hi"), "401")
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{}
	lookup := func(k string) string { return env[k] }

	assert.IsType(t, Nop{}, FromEnv(lookup))

	env["QRE_TELEGRAM_TOKEN"] = "tok"
	env["QRE_TELEGRAM_CHAT_ID"] = "42"
	assert.IsType(t, &TelegramNotifier{}, FromEnv(lookup))
}
