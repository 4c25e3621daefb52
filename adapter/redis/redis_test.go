package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/vpd/types"
)

func testRecord() *types.FaultRecord {
	return &types.FaultRecord{
		RecordVersion: types.RecordVersion,
		ID:            "0b6f3f7e-1d55-4c1e-a3a8-52c6a1d0b001",
		Timestamp:     "2026-10-19T12:00:00Z",
		ErrorType:     "WriteFailure",
		Message:       "com.ibm.VPD.Error.WriteFailure",
		Severity:      "xyz.openbmc_project.Logging.Entry.Level.Warning",
		Description:   "Failed to update redundant EEPROM",
		Callouts: []types.CalloutEntry{
			{Kind: types.CalloutInventory, Path: "/xyz/openbmc_project/inventory/system/chassis/motherboard", Priority: "H"},
		},
		Provenance: types.Provenance{File: "manager.go", Function: "UpdateKeyword"},
	}
}

// asyncReceive starts a goroutine that reads one message from the subscriber
// and sends it to the returned channel. Must be called BEFORE Create to avoid
// deadlocking miniredis's synchronous pub/sub delivery.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() {
		ch <- <-sub.Messages()
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{} // unreachable
	}
}

func TestCreate_JSON(t *testing.T) {
	mr := miniredis.RunT(t)

	tr, err := New(Config{URL: "redis://" + mr.Addr(), Retries: 0})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = tr.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe(DefaultChannel)
	ch := asyncReceive(sub)

	if err := tr.Create(t.Context(), testRecord()); err != nil {
		t.Fatalf("create: %v", err)
	}

	msg := waitMessage(t, ch)
	if msg.Channel != DefaultChannel {
		t.Errorf("expected channel %q, got %q", DefaultChannel, msg.Channel)
	}

	var received types.FaultRecord
	if err := json.Unmarshal([]byte(msg.Message), &received); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if received.ErrorType != "WriteFailure" {
		t.Errorf("expected WriteFailure, got %s", received.ErrorType)
	}
	if len(received.Callouts) != 1 || received.Callouts[0].Priority != "H" {
		t.Errorf("unexpected callouts: %+v", received.Callouts)
	}
}

func TestCreate_Msgpack(t *testing.T) {
	mr := miniredis.RunT(t)

	customChannel := "bmc:faults"
	tr, err := New(Config{URL: "redis://" + mr.Addr(), Channel: customChannel, Codec: CodecMsgpack})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = tr.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe(customChannel)
	ch := asyncReceive(sub)

	if err := tr.Create(t.Context(), testRecord()); err != nil {
		t.Fatalf("create: %v", err)
	}

	msg := waitMessage(t, ch)
	var received types.FaultRecord
	if err := msgpack.Unmarshal([]byte(msg.Message), &received); err != nil {
		t.Fatalf("msgpack unmarshal: %v", err)
	}
	if received.Provenance.Function != "UpdateKeyword" {
		t.Errorf("expected UpdateKeyword, got %s", received.Provenance.Function)
	}
}

func TestCreate_ExhaustsRetries(t *testing.T) {
	// Use an address that won't connect
	tr, err := New(Config{URL: "redis://127.0.0.1:1", Retries: 2, Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = tr.Close() }()

	if err := tr.Create(t.Context(), testRecord()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestCreate_ContextCanceled(t *testing.T) {
	tr, err := New(Config{URL: "redis://127.0.0.1:1", Retries: 5, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = tr.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := tr.Create(ctx, testRecord()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty url", Config{}},
		{"invalid url", Config{URL: "not-a-redis-url"}},
		{"negative retries", Config{URL: "redis://localhost:6379", Retries: -1}},
		{"unknown codec", Config{URL: "redis://localhost:6379", Codec: "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_DefaultsApplied(t *testing.T) {
	mr := miniredis.RunT(t)

	tr, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = tr.Close() }()

	if tr.config.Channel != DefaultChannel {
		t.Errorf("expected default channel %q, got %q", DefaultChannel, tr.config.Channel)
	}
	if tr.config.Codec != CodecJSON {
		t.Errorf("expected default codec json, got %q", tr.config.Codec)
	}
	if tr.config.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultTimeout, tr.config.Timeout)
	}
}

func TestClose_ClosesConnection(t *testing.T) {
	mr := miniredis.RunT(t)

	tr, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := tr.Create(t.Context(), testRecord()); err == nil {
		t.Fatal("expected error after close")
	}
}
