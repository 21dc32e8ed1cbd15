package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sol1corejz/imgify/cmd/config"
	"github.com/sol1corejz/imgify/internal/contact"
	"github.com/sol1corejz/imgify/internal/models"
	"github.com/sol1corejz/imgify/internal/ratelimit"
	"github.com/sol1corejz/imgify/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Dev = true
	cfg.AdminEmail = "admin@imgify.local"
	cfg.AdminPassword = "admin-pass"
	cfg.UsersFile = filepath.Join(t.TempDir(), "users.json")
	return cfg
}

func testRequest(t *testing.T, ts *httptest.Server, method, path string, body []byte) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(respBody)
}

func TestBuild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := build(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	ts := httptest.NewServer(a.handler)
	defer ts.Close()

	resp, body := testRequest(t, ts, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", body)

	creds, err := json.Marshal(models.LoginRequest{Email: "admin@imgify.local", Password: "admin-pass"})
	require.NoError(t, err)
	resp, body = testRequest(t, ts, http.MethodPost, "/api/login", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var login models.LoginResponse
	require.NoError(t, json.Unmarshal([]byte(body), &login))
	assert.Equal(t, "admin", login.User.Role)

	resp, _ = testRequest(t, ts, http.MethodGet, "/api/internal/stats", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBuildRejectsMissingBackends(t *testing.T) {
	tests := []struct {
		name      string
		transport string
	}{
		{name: "postgres without dsn", transport: "postgres"},
		{name: "redis without address", transport: "redis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.ContactTransport = tt.transport
			_, err := build(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewContactTransport(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	tr, err := newContactTransport(ctx, cfg, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &contact.LogTransport{}, tr)

	cfg.ContactTransport = "file"
	cfg.ContactOutbox = filepath.Join(t.TempDir(), "outbox.jsonl")
	tr, err = newContactTransport(ctx, cfg, nil, nil)
	require.NoError(t, err)
	ft, ok := tr.(*contact.FileTransport)
	require.True(t, ok)
	assert.NoError(t, ft.Close())

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg.ContactTransport = "redis"
	tr, err = newContactTransport(ctx, cfg, nil, rdb)
	require.NoError(t, err)
	require.NoError(t, tr.Deliver(ctx, models.ContactSubmission{ID: "1", Name: "Ann"}))
	assert.True(t, mr.Exists(cfg.ContactQueue))
}

func TestNewUserStorage(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	users, err := newUserStorage(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.FileStorage{}, users)

	require.NoError(t, seedAdmin(ctx, cfg, users))
	// Повторный запуск не перезаписывает администратора.
	require.NoError(t, seedAdmin(ctx, cfg, users))

	admin, err := users.Lookup(ctx, cfg.AdminEmail)
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Role)
	assert.NotEqual(t, cfg.AdminPassword, admin.PasswordHash)

	cfg.UsersFile = ""
	users, err = newUserStorage(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStorage{}, users)
}

func TestTiers(t *testing.T) {
	got := tiers(config.Default().Limits)

	assert.Equal(t, ratelimit.Tier{BatchLimit: 5, ImageQuota: 20, Window: 24 * time.Hour}, got[ratelimit.TierGuest])
	assert.Equal(t, ratelimit.Tier{BatchLimit: 50, ImageQuota: 500, Window: 24 * time.Hour}, got[ratelimit.TierUser])
	assert.Equal(t, ratelimit.Tier{BatchLimit: 1, RequestQuota: 3, Window: time.Hour}, got[ratelimit.TierContact])
}

func TestBodyLimits(t *testing.T) {
	got := bodyLimits(config.Default())

	assert.Equal(t, int64(5*10240*1024+1<<20), got[ratelimit.TierGuest])
	assert.Equal(t, int64(50*10240*1024+1<<20), got[ratelimit.TierUser])
}
