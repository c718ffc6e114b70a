package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/npezzotti/go-roombook/internal/config"
	"github.com/npezzotti/go-roombook/internal/database"
	"github.com/npezzotti/go-roombook/internal/notify"
	"github.com/npezzotti/go-roombook/internal/stats"
	"github.com/npezzotti/go-roombook/internal/testutil"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(ev notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Events() []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notify.Event(nil), p.events...)
}

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:     "localhost:0",
		SigningKey:     []byte("test-signing-key"),
		AllowedOrigins: []string{"http://localhost:3000"},
	}
}

func newTestApp(t *testing.T, repo *database.MockRoomRepository, st *stats.MockStatsProvider) (*App, *recordingPublisher) {
	t.Helper()
	app := NewApp(http.NewServeMux(), testutil.TestLogger(t), nil, repo, st, testConfig())
	pub := &recordingPublisher{}
	app.feed = pub
	return app, pub
}

func newAuthedRequest(t *testing.T, app *App, method, path string, body any) *http.Request {
	t.Helper()
	req := newRequest(t, method, path, body)
	token, err := app.createToken(Identity{UserId: 1, Username: "admin"}, defaultJwtExpiration)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func newRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(v)
	default:
		b, err := json.Marshal(v)
		require.NoError(t, err)
		r = bytes.NewBuffer(b)
	}
	return httptest.NewRequest(method, path, r)
}

func serve(app *App, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ApiError {
	t.Helper()
	var apiErr ApiError
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&apiErr), "failed to decode error response")
	return apiErr
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }
