package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fitchallenge/database"
	"fitchallenge/middleware"
	"fitchallenge/realtime"
	"fitchallenge/services"
	"fitchallenge/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSecret     = "handlers-test-secret-at-least-32-chars"
	testAdminToken = "admin-secret"
)

type testServer struct {
	app    *fiber.App
	db     *gorm.DB
	tokens *middleware.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	broker := realtime.NewMemoryBroker(realtime.DefaultBufferSize)
	t.Cleanup(func() { _ = broker.Close() })

	blobs, err := storage.NewLocalStorage(t.TempDir(), "http://files.test/uploads")
	require.NoError(t, err)

	tokens := middleware.NewJWTManager(testSecret, time.Hour)
	InitHandlers(Deps{DB: db, Broker: broker, Blobs: blobs, Tokens: tokens, TxMaxRetries: 3})
	services.InitCleanupService(db, broker, 0)

	app := fiber.New()
	SetupRoutes(app, RouteOptions{Verifier: tokens, AdminToken: testAdminToken})
	return &testServer{app: app, db: db, tokens: tokens}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := s.tokens.Issue(userID, userID+"@example.com")
	require.NoError(t, err)
	return token
}

// do sends a JSON request and decodes the JSON response
func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

// createChallenge creates a challenge through the API and returns its id
func (s *testServer) createChallenge(t *testing.T, token string, body map[string]interface{}) string {
	t.Helper()
	status, payload := s.do(t, "POST", "/api/challenges", token, body)
	require.Equal(t, fiber.StatusCreated, status, payload)
	return payload["challenge"].(map[string]interface{})["id"].(string)
}
