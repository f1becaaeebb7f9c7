// Package testutil holds helpers shared by tests that need a real Postgres.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/polls-go/db"
)

// TestDBEnv names the variable holding the test database URL. Tests that
// need Postgres are skipped when it is unset.
const TestDBEnv = "POLLS_TEST_DATABASE_URL"

// SetupTestPool returns a pool bound to a freshly migrated schema named
// after schema, so packages running in parallel do not share tables.
func SetupTestPool(t *testing.T, schema string) *pgxpool.Pool {
	t.Helper()

	baseURL := os.Getenv(TestDBEnv)
	if baseURL == "" {
		t.Skipf("%s not set; skipping Postgres test", TestDBEnv)
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, baseURL)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	_, err = admin.Exec(ctx, fmt.Sprintf(`DROP SCHEMA IF EXISTS %[1]s CASCADE; CREATE SCHEMA %[1]s;`, schema))
	admin.Close()
	if err != nil {
		t.Fatalf("Failed to reset schema %s: %v", schema, err)
	}

	dsn := withSearchPath(baseURL, schema)
	if err := db.MigrateUp(dsn); err != nil {
		t.Fatalf("Failed to migrate schema %s: %v", schema, err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to open pool for schema %s: %v", schema, err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + schema
}

// MakeRequest creates an HTTP test request with an optional JSON body and
// "Authorization: Token <token>" header.
func MakeRequest(method, path string, body interface{}, token string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	return req
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into v.
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
