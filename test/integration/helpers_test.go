//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// Environment variable names for integration test configuration.
const (
	EnvServerURL = "INTEGRATION_SERVER_URL"
)

// Default configuration values.
const (
	DefaultServerURL = "http://localhost:8001"
	DefaultTimeout   = 10 * time.Second
)

// getEnvOrDefault returns the value of the environment variable
// identified by key, or defaultVal if the variable is not set.
func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// serverURL returns the base URL of the server under test.
func serverURL() string {
	return getEnvOrDefault(EnvServerURL, DefaultServerURL)
}

// skipIfServiceUnavailable checks whether the service at the given
// URL is reachable and skips the test if it is not.
func skipIfServiceUnavailable(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		t.Skipf("Service unavailable at %s: %v", url, err)
	}
	resp.Body.Close()
}

// createHTTPClient returns an *http.Client with a sensible timeout
// for integration tests.
func createHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// doRequest sends a request and returns the status code and body. A
// non-nil body is JSON encoded unless it is already a string.
func doRequest(
	t *testing.T,
	client *http.Client,
	method, url string,
	body any,
) (int, []byte) {
	t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}

	return resp.StatusCode, data
}
