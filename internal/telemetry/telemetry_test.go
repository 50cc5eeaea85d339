package telemetry

import (
	"context"
	"testing"
)

// TestSetupDisabled verifies an empty endpoint yields a working no-op shutdown.
func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "gymdesk", "test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

// TestSetupEnabled verifies a provider is built for a configured endpoint.
// The exporter connects lazily, so no collector is needed.
func TestSetupEnabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "gymdesk", "test", "http://127.0.0.1:4318")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
