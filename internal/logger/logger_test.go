package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rschio/atm/internal/opctx"
)

func TestNewAddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "ATM")

	ctx := opctx.SetValues(context.Background(), &opctx.Values{TraceID: "trace-1"})
	log.InfoContext(ctx, "hello", "card", "12345678")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decoding record %q: %v", buf.String(), err)
	}

	for k, want := range map[string]string{
		"msg":      "hello",
		"service":  "ATM",
		"trace_id": "trace-1",
		"card":     "12345678",
	} {
		if got, _ := rec[k].(string); got != want {
			t.Errorf("%s: got %q want %q", k, got, want)
		}
	}
}

func TestInfocCtx(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "ATM")

	InfocCtx(context.Background(), log, 2, "commit", "ops", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decoding record %q: %v", buf.String(), err)
	}
	if rec["msg"] != "commit" {
		t.Fatalf("got msg %v", rec["msg"])
	}
	if rec["ops"] != float64(3) {
		t.Fatalf("got ops %v", rec["ops"])
	}
}
