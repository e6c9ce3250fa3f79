package coordinator

import (
	"bytes"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/rawblock/eventlog-pretsa/internal/engine"
	"github.com/rawblock/eventlog-pretsa/internal/logio"
	"github.com/rawblock/eventlog-pretsa/pkg/models"
)

// submitHolder drives one side of a net.Pipe as a holder would: send id,
// key, sealed log, then wait for the sealed result.
func submitHolder(t *testing.T, conn net.Conn, holderID string, key []byte, events []models.EventRecord) []models.EventRecord {
	t.Helper()

	var buf bytes.Buffer
	if err := logio.WriteTable(&buf, toSanitized(events), false); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	sealed, err := seal(key, buf.Bytes())
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if err := writeFrame(conn, []byte(holderID)); err != nil {
		t.Fatalf("writeFrame id: %v", err)
	}
	if err := writeFrame(conn, key); err != nil {
		t.Fatalf("writeFrame key: %v", err)
	}
	if err := writeFrame(conn, sealed); err != nil {
		t.Fatalf("writeFrame log: %v", err)
	}

	resultSealed, err := readFrame(conn)
	if err != nil {
		t.Fatalf("readFrame result: %v", err)
	}
	resultPlain, err := open(key, resultSealed)
	if err != nil {
		t.Fatalf("open result: %v", err)
	}
	records, err := logio.ReadTable(bytes.NewReader(resultPlain))
	if err != nil {
		t.Fatalf("ReadTable result: %v", err)
	}
	return records
}

func toSanitized(events []models.EventRecord) []models.SanitizedEvent {
	out := make([]models.SanitizedEvent, len(events))
	for i, e := range events {
		out[i] = models.SanitizedEvent{CaseID: e.CaseID, Activity: e.Activity, Duration: e.Duration, EventNr: i + 1}
	}
	return out
}

func TestCoordinator_UnionSplitRound(t *testing.T) {
	c := New(engine.ModeParams{K: 2, T: 0.9, Mode: engine.ModeStandard}, 7)

	serverA, clientA := net.Pipe()
	serverB, clientB := net.Pipe()

	go c.handleHolder(serverA)
	go c.handleHolder(serverB)

	keyA := bytes.Repeat([]byte{0xAA}, chacha20poly1305.KeySize)
	keyB := bytes.Repeat([]byte{0xBB}, chacha20poly1305.KeySize)

	holderAEvents := []models.EventRecord{
		{CaseID: "a1", Activity: "A", Duration: 1},
		{CaseID: "a1", Activity: "B", Duration: 2},
		{CaseID: "a2", Activity: "A", Duration: 1},
		{CaseID: "a2", Activity: "B", Duration: 2},
	}
	holderBEvents := []models.EventRecord{
		{CaseID: "b1", Activity: "A", Duration: 3},
		{CaseID: "b1", Activity: "B", Duration: 4},
	}

	resultCh := make(chan []models.EventRecord, 2)
	go func() { resultCh <- submitHolder(t, clientA, "holderA", keyA, holderAEvents) }()
	go func() { resultCh <- submitHolder(t, clientB, "holderB", keyB, holderBEvents) }()

	deadline := time.Now().Add(2 * time.Second)
	for c.HolderCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.HolderCount() != 2 {
		t.Fatalf("expected 2 holders connected, got %d", c.HolderCount())
	}

	if err := c.Compute(); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	first := <-resultCh
	second := <-resultCh
	if len(first) == 0 || len(second) == 0 {
		t.Fatalf("expected both holders to receive a non-empty sanitized slice")
	}
}
