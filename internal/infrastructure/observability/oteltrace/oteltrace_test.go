package oteltrace

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSetup_NoWriterIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{ServiceName: "juice-vending"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetup_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Config{ServiceName: "juice-vending", ServiceVersion: "test", Writer: &buf})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	_, span := New("test").Start(context.Background(), "UC.Purchase", attribute.Int("product.id", 1))
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "UC.Purchase") {
		t.Fatalf("exported spans missing UC.Purchase: %s", buf.String())
	}
}
