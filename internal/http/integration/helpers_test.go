package integration__test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/bookinghub/internal/auth"
	"github.com/geocoder89/bookinghub/internal/booking"
	"github.com/geocoder89/bookinghub/internal/clock"
	"github.com/geocoder89/bookinghub/internal/config"
	apphttp "github.com/geocoder89/bookinghub/internal/http"
	"github.com/geocoder89/bookinghub/internal/jobs"
	"github.com/geocoder89/bookinghub/internal/mail"
	"github.com/geocoder89/bookinghub/internal/notifications"
	"github.com/geocoder89/bookinghub/internal/queue/worker"
	"github.com/geocoder89/bookinghub/internal/repo"
	"github.com/gin-gonic/gin"
)

const testSecret = "test-secret-key"

// Bookings in these tests happen on 2024-06-01; "now" is 10:00 UTC that day.
var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type apiErrorResponse struct {
	Error struct {
		Code      string          `json:"code"`
		Message   string          `json:"message"`
		RequestID string          `json:"requestId"`
		Details   json.RawMessage `json:"details"`
	} `json:"error"`
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (s *recordingSender) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Messages() []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Message(nil), s.sent...)
}

type testApp struct {
	router *gin.Engine
	stores *repo.Stores
	tokens *auth.Manager
	worker *worker.Worker
	sender *recordingSender
}

func testConfig(store, queue string) config.Config {
	return config.Config{
		Env:                 "test",
		StoreDriver:         store,
		QueueDriver:         queue,
		JWTSecret:           testSecret,
		JWTAccessTTLMinutes: 60,
		DisplayTimezone:     "UTC",
		AppURL:              "http://localhost:3333",
		RateLimitRPS:        1000,
		RateLimitBurst:      1000,
	}
}

func newTestApp(t *testing.T, cfg config.Config) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	stores, err := repo.Open(context.Background(), cfg, nil, logger)
	if err != nil {
		t.Fatalf("open stores: %v", err)
	}
	t.Cleanup(func() { _ = stores.Close() })

	return wireApp(t, cfg, stores, logger)
}

func wireApp(t *testing.T, cfg config.Config, stores *repo.Stores, logger *slog.Logger) *testApp {
	t.Helper()

	dispatcher := notifications.NewDispatcher(stores.Users, stores.Notifications, stores.Queue, notifications.Config{
		Location: time.UTC,
	}, logger)

	svc := booking.NewService(booking.Deps{
		Users:        stores.Users,
		Appointments: stores.Appointments,
		Notifier:     dispatcher,
		Clock:        clock.Fixed{T: testNow},
		Location:     time.UTC,
		Log:          logger,
	})

	tokens := auth.NewManager(testSecret, time.Hour)

	router := apphttp.NewRouter(logger, apphttp.Deps{
		Booking:       svc,
		Users:         stores.Users,
		Notifications: stores.Notifications,
		Tokens:        tokens,
		Ping:          stores.Ping,
	}, cfg)

	sender := &recordingSender{}
	wk := worker.New(worker.Config{
		PollInterval: 10 * time.Millisecond,
		WorkerID:     "test-worker",
		Concurrency:  1,
	}, stores.Queue, logger, nil, nil)
	jobs.Register(wk, sender)

	return &testApp{router: router, stores: stores, tokens: tokens, worker: wk, sender: sender}
}

func (a *testApp) token(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := a.tokens.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func (a *testApp) do(t *testing.T, method, path string, userID int64, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID > 0 {
		req.Header.Set("Authorization", "Bearer "+a.token(t, userID))
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeAPIError(t *testing.T, w *httptest.ResponseRecorder) apiErrorResponse {
	t.Helper()
	var resp apiErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v body=%s", err, w.Body.String())
	}
	return resp
}

func bookBody(providerID int64, date string) string {
	return `{"provider_id":` + strconv.FormatInt(providerID, 10) + `,"date":"` + date + `"}`
}
