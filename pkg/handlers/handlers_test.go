package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sol1corejz/imgify/internal/auth"
	"github.com/sol1corejz/imgify/internal/batch"
	"github.com/sol1corejz/imgify/internal/contact"
	"github.com/sol1corejz/imgify/internal/models"
	"github.com/sol1corejz/imgify/internal/ratelimit"
	"github.com/sol1corejz/imgify/internal/stats"
	"github.com/sol1corejz/imgify/internal/storage"
	"github.com/sol1corejz/imgify/internal/testimg"
	"github.com/sol1corejz/imgify/internal/transform"
	"github.com/sol1corejz/imgify/internal/validator"
)

const (
	adminEmail    = "admin@imgify.local"
	adminPassword = "admin-pass"
	userEmail     = "ann@example.com"
	userPassword  = "ann-pass"
)

type testEnv struct {
	router http.Handler
	stats  *stats.Collector
	outbox string
}

type upload struct {
	name string
	data []byte
}

func newTestEnv(tb testing.TB, opts ...func(*Deps, *RouterOptions)) *testEnv {
	tb.Helper()
	ctx := context.Background()

	users := storage.NewMemoryStorage()
	for _, u := range []struct{ email, name, role, password string }{
		{adminEmail, "admin", auth.RoleAdmin, adminPassword},
		{userEmail, "ann", auth.RoleUser, userPassword},
	} {
		hash, err := auth.HashPassword(u.password, bcrypt.MinCost)
		require.NoError(tb, err)
		require.NoError(tb, users.Save(ctx, models.User{Email: u.email, Username: u.name, Role: u.role, PasswordHash: hash}))
	}
	svc, err := auth.NewService(users, auth.NewTokens("test-secret", time.Hour))
	require.NoError(tb, err)

	limiter := ratelimit.New(ratelimit.NewMemoryStore(), map[string]ratelimit.Tier{
		ratelimit.TierGuest:   {BatchLimit: 5, ImageQuota: 20, Window: 24 * time.Hour},
		ratelimit.TierUser:    {BatchLimit: 50, ImageQuota: 500, Window: 24 * time.Hour},
		ratelimit.TierContact: {BatchLimit: 1, RequestQuota: 3, Window: time.Hour},
	}, nil)

	outbox := filepath.Join(tb.TempDir(), "contacts.jsonl")
	transport, err := contact.NewFileTransport(outbox)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = transport.Close() })

	collector := stats.New()
	v := validator.New(10 << 20)
	orchestrator := batch.New(v, limiter, transform.New(transform.DefaultMaxPixels), collector, batch.Options{Workers: 4, Timeout: 30 * time.Second})

	deps := Deps{
		Batch:     orchestrator,
		Limiter:   limiter,
		Validator: v,
		Auth:      svc,
		Contact:   contact.NewIntake(limiter, transport, collector),
		Stats:     collector,
		Users:     users,
	}
	routerOpts := RouterOptions{CORSOrigins: []string{"*"}, TrustedSubnet: "192.0.2.0/24"}
	for _, opt := range opts {
		opt(&deps, &routerOpts)
	}

	return &testEnv{
		router: NewRouter(New(deps), routerOpts),
		stats:  collector,
		outbox: outbox,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(tb testing.TB, email, password string) string {
	tb.Helper()
	w := e.do(jsonRequest(http.MethodPost, "/api/login", models.LoginRequest{Email: email, Password: password}))
	require.Equal(tb, http.StatusOK, w.Code, w.Body.String())

	var resp models.LoginResponse
	require.NoError(tb, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func jsonRequest(method, path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func batchRequest(tb testing.TB, path string, files []upload, fields map[string]string) *http.Request {
	tb.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("images[]", f.name)
		require.NoError(tb, err)
		_, err = part.Write(f.data)
		require.NoError(tb, err)
	}
	for k, v := range fields {
		require.NoError(tb, mw.WriteField(k, v))
	}
	require.NoError(tb, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngs(n int) []upload {
	files := make([]upload, n)
	for i := range files {
		files[i] = upload{name: fmt.Sprintf("img%d.png", i), data: testimg.PNG(16, 16)}
	}
	return files
}

func withToken(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decodeError(tb testing.TB, w *httptest.ResponseRecorder) models.ErrorResponse {
	tb.Helper()
	var resp models.ErrorResponse
	require.NoError(tb, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestOptimizeGuestBatchTooLarge(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(batchRequest(t, "/api/optimize", pngs(6), nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	resp := decodeError(t, w)
	assert.Equal(t, ratelimit.ReasonBatchSizeExceeded, resp.Error)
	assert.Equal(t, "Batch limit exceeded. Maximum 5 images per batch.", resp.Message)
	limits, ok := resp.Limits.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 5, limits["batch_limit"])
	assert.EqualValues(t, 0, limits["daily_used"])
	assert.Equal(t, int64(1), env.stats.Snapshot().RejectedBatches)
}

func TestOptimizeGuestQuotaExceeded(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 4; i++ {
		w := env.do(batchRequest(t, "/api/optimize", pngs(5), nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := env.do(batchRequest(t, "/api/optimize", pngs(1), nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, ratelimit.ReasonQuotaExceeded, resp.Error)
	assert.Equal(t, "Daily limit exceeded. You have 0 images remaining today.", resp.Message)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	other := batchRequest(t, "/api/optimize", pngs(1), nil)
	other.RemoteAddr = "198.51.100.7:4000"
	assert.Equal(t, http.StatusOK, env.do(other).Code)
}

func TestOptimizeGuestIgnoresForwardedHeaders(t *testing.T) {
	env := newTestEnv(t)

	// Один и тот же сокет с разными X-Forwarded-For остаётся одним гостем.
	for i := 0; i < 4; i++ {
		req := batchRequest(t, "/api/optimize", pngs(5), nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.9.9.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.9.8.%d", i))
		require.Equal(t, http.StatusOK, env.do(req).Code)
	}

	req := batchRequest(t, "/api/optimize", pngs(5), nil)
	req.Header.Set("X-Forwarded-For", "10.9.9.200")
	w := env.do(req)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ratelimit.ReasonQuotaExceeded, decodeError(t, w).Error)
}

func TestOptimizeGuestBehindTrustedProxy(t *testing.T) {
	env := newTestEnv(t, func(_ *Deps, o *RouterOptions) {
		o.TrustedProxies = []string{"192.0.2.0/24"}
	})

	for i := 0; i < 4; i++ {
		req := batchRequest(t, "/api/optimize", pngs(5), nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.9.9.%d, 198.51.100.20", i))
		require.Equal(t, http.StatusOK, env.do(req).Code)
	}

	// Левые записи подставляет клиент: квота считается по адресу, который добавил прокси.
	spoofed := batchRequest(t, "/api/optimize", pngs(1), nil)
	spoofed.Header.Set("X-Forwarded-For", "10.9.9.250, 198.51.100.20")
	assert.Equal(t, http.StatusTooManyRequests, env.do(spoofed).Code)

	other := batchRequest(t, "/api/optimize", pngs(1), nil)
	other.Header.Set("X-Forwarded-For", "198.51.100.21")
	assert.Equal(t, http.StatusOK, env.do(other).Code)
}

func TestOptimizeBodyLimitPerTier(t *testing.T) {
	env := newTestEnv(t, func(d *Deps, _ *RouterOptions) {
		d.BodyLimits = map[string]int64{ratelimit.TierGuest: 64 << 10}
	})
	files := []upload{
		{name: "a.png", data: testimg.PNG(16, 16)},
		{name: "notes.txt", data: bytes.Repeat([]byte("lorem ipsum "), 10<<10)},
	}

	w := env.do(batchRequest(t, "/api/optimize", files, nil))
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	assert.Equal(t, "payload_too_large", decodeError(t, w).Error)

	token := env.login(t, userEmail, userPassword)
	w = env.do(withToken(batchRequest(t, "/api/optimize", files, nil), token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestOptimizeUserBatchKeepsOrder(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, userEmail, userPassword)

	files := pngs(6)
	w := env.do(withToken(batchRequest(t, "/api/optimize", files, map[string]string{"quality": "70"}), token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Results, len(files))
	for i, r := range resp.Results {
		assert.Equal(t, files[i].name, r.Filename)
		assert.Empty(t, r.Error)
		require.NotNil(t, r.CompressionRatio)
		assert.Empty(t, r.Data)
	}
	require.NotNil(t, resp.Limits)
	assert.Equal(t, "registered", resp.Limits.UserType)
	assert.Equal(t, 6, resp.Limits.DailyUsed)
	assert.Equal(t, 494, resp.Limits.DailyRemaining)
}

func TestOptimizeRequestErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantErr  string
		wantSub  string
	}{
		{
			name:     "no files",
			req:      batchRequest(t, "/api/optimize", nil, map[string]string{"quality": "80"}),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "validation_error",
			wantSub:  batch.CodeNoFiles,
		},
		{
			name:     "font only",
			req:      batchRequest(t, "/api/optimize", []upload{{name: "font.ttf", data: testimg.TTF()}}, nil),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "validation_error",
			wantSub:  batch.CodeNoValidImages,
		},
		{
			name:     "quality out of range",
			req:      batchRequest(t, "/api/optimize", pngs(1), map[string]string{"quality": "150"}),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "validation_error",
			wantSub:  "invalid_request",
		},
		{
			name:     "not multipart",
			req:      jsonRequest(http.MethodPost, "/api/optimize", map[string]string{"a": "b"}),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "validation_error",
			wantSub:  "invalid_request",
		},
		{
			name:     "invalid token",
			req:      withToken(batchRequest(t, "/api/optimize", pngs(1), nil), "garbage"),
			wantCode: http.StatusUnauthorized,
			wantErr:  "auth_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(tt.req)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantErr, resp.Error)
			if tt.wantSub != "" {
				assert.Equal(t, tt.wantSub, resp.Code)
			}
		})
	}
}

func TestOptimizeFontRejectionDetails(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(batchRequest(t, "/api/optimize", []upload{{name: "font.ttf", data: testimg.TTF()}}, nil))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decodeError(t, w)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "font.ttf", resp.Errors[0].Filename)
	assert.Equal(t, validator.ReasonUnsupportedType, resp.Errors[0].Reason)
}

func TestOptimizeMixedBatch(t *testing.T) {
	env := newTestEnv(t)

	files := []upload{
		{name: "a.png", data: testimg.PNG(16, 16)},
		{name: "font.ttf", data: testimg.TTF()},
		{name: "broken.png", data: testimg.CorruptPNG()},
	}
	w := env.do(batchRequest(t, "/api/optimize", files, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Results, 3)
	assert.Empty(t, resp.Results[0].Error)
	assert.Equal(t, validator.ReasonUnsupportedType, resp.Results[1].Error)
	assert.Equal(t, transform.CodeDecode, resp.Results[2].Error)
}

func TestConvert(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(batchRequest(t, "/api/convert", []upload{{name: "a.png", data: testimg.PNG(32, 32)}},
		map[string]string{"format": "jpg", "include_data": "true"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	res := resp.Results[0]
	assert.Equal(t, "jpeg", res.Format)
	assert.Equal(t, "png", res.OriginalFormat)

	data, err := base64.StdEncoding.DecodeString(res.Data)
	require.NoError(t, err)
	require.Greater(t, len(data), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])
	assert.EqualValues(t, len(data), res.OptimizedSize)
}

func TestConvertFormatErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		format string
		code   string
	}{
		{name: "missing", format: "", code: "invalid_request"},
		{name: "webp output", format: "webp", code: transform.CodeUnsupportedFormat},
		{name: "unknown", format: "heic", code: transform.CodeUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(batchRequest(t, "/api/convert", pngs(1), map[string]string{"format": tt.format}))
			require.Equal(t, http.StatusUnprocessableEntity, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Code)
			require.Len(t, resp.Errors, 1)
			assert.Equal(t, "format", resp.Errors[0].Field)
		})
	}

	// Ошибки параметров не расходуют квоту.
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/limits", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var limits models.Limits
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &limits))
	assert.Equal(t, 0, limits.DailyUsed)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(jsonRequest(http.MethodPost, "/api/login", models.LoginRequest{Email: adminEmail, Password: adminPassword}))
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.UserInfo{Username: "admin", Role: auth.RoleAdmin, Email: adminEmail}, resp.User)

	wrongPassword := env.do(jsonRequest(http.MethodPost, "/api/login", models.LoginRequest{Email: adminEmail, Password: "nope"}))
	unknownUser := env.do(jsonRequest(http.MethodPost, "/api/login", models.LoginRequest{Email: "ghost@example.com", Password: "nope"}))
	require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	require.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
	assert.Equal(t, "invalid credentials", decodeError(t, wrongPassword).Message)
}

func TestLoginBadRequests(t *testing.T) {
	env := newTestEnv(t)

	bad := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("{not json"))
	w := env.do(bad)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_json", decodeError(t, w).Code)

	w = env.do(jsonRequest(http.MethodPost, "/api/login", models.LoginRequest{Password: "x"}))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "invalid_request", resp.Code)
	require.NotEmpty(t, resp.Errors)
	assert.Equal(t, "email", resp.Errors[0].Field)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := env.login(t, userEmail, userPassword)
	w = env.do(withToken(httptest.NewRequest(http.MethodGet, "/api/me", nil), token))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.MeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, userEmail, resp.Email)
	assert.Equal(t, "ann", resp.Username)
	assert.Equal(t, auth.RoleUser, resp.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, time.Minute)
}

func TestContact(t *testing.T) {
	env := newTestEnv(t)

	genuine := models.ContactMessage{Name: "Ann", Email: "ann@example.com", Subject: "Hi", Message: "Hello there"}
	bot := genuine
	bot.Honeypot = "filled"

	w := env.do(jsonRequest(http.MethodPost, "/api/contact", bot))
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ContactResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, contact.SuccessMessage, resp.Message)
	assert.Equal(t, int64(0), env.stats.Snapshot().Contacts)

	for i := 0; i < 3; i++ {
		w = env.do(jsonRequest(http.MethodPost, "/api/contact", genuine))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.Equal(t, int64(3), env.stats.Snapshot().Contacts)

	w = env.do(jsonRequest(http.MethodPost, "/api/contact", genuine))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ratelimit.ReasonQuotaExceeded, decodeError(t, w).Error)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestContactValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(jsonRequest(http.MethodPost, "/api/contact", models.ContactMessage{Name: "Ann", Email: "not-an-email", Message: "Hi"}))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "validation_error", resp.Error)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "email", resp.Errors[0].Field)
}

func TestAdminContacts(t *testing.T) {
	env := newTestEnv(t)

	msg := models.ContactMessage{Name: "Ann", Email: "ann@example.com", Message: "Hello"}
	require.Equal(t, http.StatusOK, env.do(jsonRequest(http.MethodPost, "/api/contact", msg)).Code)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/admin/contacts", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	userToken := env.login(t, userEmail, userPassword)
	w = env.do(withToken(httptest.NewRequest(http.MethodGet, "/api/admin/contacts", nil), userToken))
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminToken := env.login(t, adminEmail, adminPassword)
	w = env.do(withToken(httptest.NewRequest(http.MethodGet, "/api/admin/contacts?limit=10", nil), adminToken))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list []models.ContactSubmission
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Ann", list[0].Name)
	assert.Equal(t, "192.0.2.1", list[0].IPAddress)

	w = env.do(withToken(httptest.NewRequest(http.MethodGet, "/api/admin/contacts?limit=abc", nil), adminToken))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestInternalStats(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/internal/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.InternalStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Batches)

	outside := httptest.NewRequest(http.MethodGet, "/api/internal/stats", nil)
	outside.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, http.StatusForbidden, env.do(outside).Code)

	// Заголовок от недоверенного клиента не открывает доступ.
	spoofed := httptest.NewRequest(http.MethodGet, "/api/internal/stats", nil)
	spoofed.RemoteAddr = "10.0.0.1:5555"
	spoofed.Header.Set("X-Real-IP", "192.0.2.5")
	assert.Equal(t, http.StatusForbidden, env.do(spoofed).Code)
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestGzipResponse(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/formats", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := env.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/optimize", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := env.do(req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func ExampleHandlers_HandleFormats() {
	h := New(Deps{Validator: validator.New(10 << 20)})

	w := httptest.NewRecorder()
	h.HandleFormats(w, httptest.NewRequest(http.MethodGet, "/api/formats", nil))

	fmt.Println(w.Code)
	fmt.Print(w.Body.String())
	// Output:
	// 200
	// {"input":["jpeg","png","gif","webp","bmp","tiff"],"output":["jpeg","png","gif","bmp","tiff"]}
}

func ExampleHandlers_HandlePing() {
	h := New(Deps{Users: storage.NewMemoryStorage()})

	w := httptest.NewRecorder()
	h.HandlePing(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	fmt.Println(w.Code, w.Body.String())
	// Output:
	// 200 pong
}

func BenchmarkHandleOptimize(b *testing.B) {
	env := newTestEnv(b)
	token := env.login(b, userEmail, userPassword)
	files := pngs(3)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		req := withToken(batchRequest(b, "/api/optimize", files, nil), token)
		b.StartTimer()

		w := env.do(req)
		if w.Code != http.StatusOK && w.Code != http.StatusTooManyRequests {
			b.Errorf("unexpected status code: %d", w.Code)
		}
	}
}
