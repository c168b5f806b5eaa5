//go:build functional

// Package functional runs the Groceries API in-process and exercises it over
// real HTTP and WebSocket connections.
package functional

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/groceries-api/internal/config"
	"github.com/vyrodovalexey/groceries-api/internal/model"
	"github.com/vyrodovalexey/groceries-api/internal/server"
	"github.com/vyrodovalexey/groceries-api/internal/store"
)

// Environment variable names for test configuration.
const (
	EnvTestStorageDriver  = "TEST_STORAGE_DRIVER"
	EnvTestMetricsEnabled = "TEST_METRICS_ENABLED"
)

// Default test configuration values.
const (
	DefaultTestHost         = "127.0.0.1"
	DefaultTestTimeout      = 30 * time.Second
	DefaultRequestTimeout   = 5 * time.Second
	DefaultWebSocketTimeout = 10 * time.Second
	DefaultShutdownTimeout  = 5 * time.Second
)

// TestServer wraps a running server and the store behind it.
type TestServer struct {
	Server  *server.Server
	Store   store.Store
	BaseURL string
	WSURL   string
	t       *testing.T
	mu      sync.Mutex
	started bool
}

// newTestStore opens the store named by TEST_STORAGE_DRIVER. sqlite, the
// production default, is used when the variable is unset.
func newTestStore(t *testing.T) store.Store {
	t.Helper()

	switch driver := os.Getenv(EnvTestStorageDriver); driver {
	case "", config.DriverSQLite:
		s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "groceries.db"), zap.NewNop())
		require.NoError(t, err)
		return s
	case config.DriverBadger:
		s, err := store.NewBadgerStore(t.TempDir(), zap.NewNop())
		require.NoError(t, err)
		return s
	case config.DriverMemory:
		return store.NewMemoryStore()
	default:
		t.Fatalf("unsupported %s=%q", EnvTestStorageDriver, driver)
		return nil
	}
}

// NewTestServer creates a server on a free local port. Call Start to serve.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	listener, err := net.Listen("tcp", DefaultTestHost+":0")
	require.NoError(t, err, "failed to find available port")
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	cfg := &config.Config{
		ServerHost:      DefaultTestHost,
		ServerPort:      port,
		LogLevel:        "error",
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  os.Getenv(EnvTestMetricsEnabled) == "true",
		StorageDriver:   config.DriverMemory,
	}

	itemStore := newTestStore(t)
	t.Cleanup(func() { _ = itemStore.Close() })

	return &TestServer{
		Server:  server.New(cfg, zap.NewNop(), itemStore),
		Store:   itemStore,
		BaseURL: fmt.Sprintf("http://%s:%d", DefaultTestHost, port),
		WSURL:   fmt.Sprintf("ws://%s:%d", DefaultTestHost, port),
		t:       t,
	}
}

// Start serves in the background and waits until /health answers.
func (ts *TestServer) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.started {
		return
	}

	go func() {
		if err := ts.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ts.t.Logf("Server error: %v", err)
		}
	}()

	ts.waitForReady()
	ts.started = true
}

func (ts *TestServer) waitForReady() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ts.t.Fatalf("Server did not become ready within timeout")
		case <-ticker.C:
			resp, err := http.Get(ts.BaseURL + "/health")
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return
				}
			}
		}
	}
}

// Stop shuts the server down.
func (ts *TestServer) Stop() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := ts.Server.Shutdown(ctx); err != nil {
		ts.t.Logf("Server shutdown error: %v", err)
	}

	ts.started = false
}

// startServer starts a fresh server that is stopped when the test ends.
func startServer(t *testing.T) (*TestServer, *HTTPClient) {
	t.Helper()

	ts := NewTestServer(t)
	ts.Start()
	t.Cleanup(ts.Stop)

	return ts, NewHTTPClient(ts.BaseURL)
}

// HTTPClient provides a configured HTTP client for tests.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a new HTTP client for testing.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: DefaultRequestTimeout},
		baseURL: baseURL,
	}
}

// Response represents an HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Do executes a request. A string body is sent verbatim; anything else is
// JSON encoded.
func (c *HTTPClient) Do(ctx context.Context, method, path string, body any, headers map[string]string) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			bodyReader = bytes.NewBufferString(v)
		default:
			jsonBody, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewBuffer(jsonBody)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, nil)
}

// Post performs a POST request.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, nil)
}

// Put performs a PUT request.
func (c *HTTPClient) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, nil)
}

// Delete performs a DELETE request.
func (c *HTTPClient) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// itemBody builds a create/update request body.
func itemBody(name string) map[string]string {
	return map[string]string{"Item": name}
}

// createItem posts name and returns the created item.
func createItem(t *testing.T, client *HTTPClient, name string) model.GroceryItem {
	t.Helper()

	resp, err := client.Post(context.Background(), "/postitems", itemBody(name))
	require.NoError(t, err)
	AssertStatusCode(t, resp, http.StatusOK)

	return parseItem(t, resp.Body)
}

// listItems returns the current grocery list.
func listItems(t *testing.T, client *HTTPClient) []model.GroceryItem {
	t.Helper()

	resp, err := client.Get(context.Background(), "/getitems")
	require.NoError(t, err)
	AssertStatusCode(t, resp, http.StatusOK)

	var items []model.GroceryItem
	require.NoError(t, json.Unmarshal(resp.Body, &items))
	require.NotNil(t, items, "list must be a JSON array")
	return items
}

func parseItem(t *testing.T, body []byte) model.GroceryItem {
	t.Helper()

	var item model.GroceryItem
	require.NoError(t, json.Unmarshal(body, &item), "body: %s", body)
	return item
}

func parseDetail(t *testing.T, body []byte) string {
	t.Helper()

	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp), "body: %s", body)
	return resp.Detail
}

// AssertStatusCode asserts that the response has the expected status code.
func AssertStatusCode(t *testing.T, resp *Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d. Body: %s", expected, resp.StatusCode, string(resp.Body))
	}
}

// LogTestStart logs the start of a test.
func LogTestStart(t *testing.T, testID, testName string) {
	t.Helper()
	t.Logf("Starting test %s: %s", testID, testName)
}
