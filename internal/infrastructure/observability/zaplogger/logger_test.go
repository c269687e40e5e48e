package zaplogger

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/juice-vending/internal/observability"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_FieldsReachZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core), observability.F("service", "juice-vending"))

	l.With(observability.F("use_case", "vending.purchase")).Info("purchase_settled",
		observability.F("quantity", 3),
		observability.F("amount", decimal.RequireFromString("210.00")),
		observability.F("error", errors.New("boom")),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Message != "purchase_settled" || e.Level != zapcore.InfoLevel {
		t.Errorf("entry = %s/%s", e.Level, e.Message)
	}
	ctx := e.ContextMap()
	if ctx["service"] != "juice-vending" || ctx["use_case"] != "vending.purchase" {
		t.Errorf("context = %v", ctx)
	}
	if ctx["amount"] != "210" {
		t.Errorf("amount = %v, want decimal string", ctx["amount"])
	}
	if ctx["error"] != "boom" {
		t.Errorf("error = %v", ctx["error"])
	}
}

func TestLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := New(zap.New(core))
	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")
	if logs.Len() != 2 {
		t.Fatalf("expected warn and error only, got %d entries", logs.Len())
	}
}
