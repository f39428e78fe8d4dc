package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSend(t *testing.T) {
	var got map[string]interface{}
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	c := NewTelegramClient(srv.URL, "TOKEN", time.Second, 1)
	require.NoError(t, c.Send(context.Background(), "12345", "🐋 hello"))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "12345", got["chat_id"])
	assert.Equal(t, "🐋 hello", got["text"])
}

func TestTelegramRetriesThenFails(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"chat not found"}`))
	}))
	defer srv.Close()

	c := NewTelegramClient(srv.URL, "TOKEN", time.Second, 2)
	err := c.Send(context.Background(), "1", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestTelegramNotConfigured(t *testing.T) {
	c := NewTelegramClient("", "", time.Second, 1)
	err := c.Send(context.Background(), "1", "x")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestLarkSend(t *testing.T) {
	var msg larkMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		_, _ = w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer srv.Close()

	c := NewLarkClient(srv.URL, time.Second, 1)
	require.NoError(t, c.Send(context.Background(), "", "alert text"))
	assert.Equal(t, "text", msg.MsgType)
	assert.Equal(t, "alert text", msg.Content.Text)
}

func TestLarkErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":19001,"msg":"param invalid"}`))
	}))
	defer srv.Close()

	c := NewLarkClient(srv.URL, time.Second, 1)
	err := c.Send(context.Background(), "", "alert text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "19001")
}

func TestRouter(t *testing.T) {
	var tgCalls, larkCalls, customCalls int32
	tg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tgCalls, 1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer tg.Close()
	lark := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&larkCalls, 1)
		_, _ = w.Write([]byte(`{"code":0}`))
	}))
	defer lark.Close()
	custom := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&customCalls, 1)
		_, _ = w.Write([]byte(`{"code":0}`))
	}))
	defer custom.Close()

	r := NewRouter(NewTelegramClient(tg.URL, "T", time.Second, 1), NewLarkClient(lark.URL, time.Second, 1))
	ctx := context.Background()
	require.NoError(t, r.Send(ctx, "777", "a"))
	require.NoError(t, r.Send(ctx, "lark:ops", "b"))
	require.NoError(t, r.Send(ctx, "lark:"+custom.URL, "c"))

	assert.EqualValues(t, 1, atomic.LoadInt32(&tgCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&larkCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&customCalls))

	noLark := NewRouter(NewTelegramClient(tg.URL, "T", time.Second, 1), nil)
	assert.True(t, errors.Is(noLark.Send(ctx, "lark:ops", "d"), ErrNotConfigured))
}
