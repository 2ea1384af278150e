//go:build integration

package integration

import (
	"os"
	"testing"
)

func mongoURI(t *testing.T) string {
	t.Helper()
	return envOrDefault("DATACHAT_TEST_MONGO_URI", "mongodb://localhost:37017/?directConnection=true")
}

func skipIfNoMongo(t *testing.T) {
	t.Helper()
	if os.Getenv("DATACHAT_TEST_MONGO_URI") == "" {
		t.Skip("skipping: DATACHAT_TEST_MONGO_URI not set")
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
