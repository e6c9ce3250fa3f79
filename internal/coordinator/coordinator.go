// Package coordinator generalizes the Python reference's
// MPCCoordinator/MPCParticipant socket pair (original_source/mpc_pretsa.py)
// into Go's net + AEAD idiom: holders submit an encrypted per-holder
// table over a framed connection, the coordinator concatenates the
// decrypted tables tagged with Holder_ID, runs the engine exactly once,
// and splits the sanitized result back out by Holder_ID before sealing
// and returning each contributor's slice.
//
// Per spec.md §1's transport-internals non-goal, this is deliberately
// pedestrian: no cryptographic secure computation (the coordinator sees
// the plaintext union) and no interactive operator prompt — each holder
// connection is served and closed within one union+split round.
package coordinator

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rawblock/eventlog-pretsa/internal/engine"
	"github.com/rawblock/eventlog-pretsa/internal/logio"
	"github.com/rawblock/eventlog-pretsa/pkg/models"
)

// session is one connected holder's still-open connection plus the key
// it supplied to encrypt its submitted log and decrypt its result.
type session struct {
	conn   net.Conn
	key    []byte
	events []models.EventRecord
}

// Coordinator accepts holder connections concurrently (one goroutine per
// connection, mirroring the teacher's wsHub.Run()/mempool.Poller
// goroutine pattern) but serializes every round behind a single mutex
// before the one engine invocation (spec.md §5).
type Coordinator struct {
	mu       sync.Mutex
	sessions map[string]*session

	params engine.ModeParams
	seed   int64
}

// New builds a Coordinator that will run every round with the given
// engine parameters and deterministic seed.
func New(params engine.ModeParams, seed int64) *Coordinator {
	return &Coordinator{
		sessions: make(map[string]*session),
		params:   params,
		seed:     seed,
	}
}

// Accept runs the holder accept loop until ctx is cancelled or the
// listener is closed, handling each connection in its own goroutine.
func (c *Coordinator) Accept(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		go c.handleHolder(conn)
	}
}

// handleHolder reads one holder's id, key, and sealed table, decrypts
// it, and stores it as a session whose connection is left open; it then
// returns. Compute later sends this holder's result over that connection
// and closes it.
func (c *Coordinator) handleHolder(conn net.Conn) {
	idFrame, err := readFrame(conn)
	if err != nil {
		log.Printf("coordinator: reading holder id: %v", err)
		_ = conn.Close()
		return
	}
	holderID := string(idFrame)

	key, err := readFrame(conn)
	if err != nil {
		log.Printf("coordinator: reading holder key: %v", err)
		_ = conn.Close()
		return
	}

	sealedLog, err := readFrame(conn)
	if err != nil {
		log.Printf("coordinator: reading holder log: %v", err)
		_ = conn.Close()
		return
	}

	plaintext, err := open(key, sealedLog)
	if err != nil {
		log.Printf("coordinator: decrypting log from holder %s: %v", holderID, err)
		_ = conn.Close()
		return
	}

	records, err := logio.ReadTable(bytes.NewReader(plaintext))
	if err != nil {
		log.Printf("coordinator: parsing table from holder %s: %v", holderID, err)
		_ = conn.Close()
		return
	}
	for i := range records {
		records[i].HolderID = holderID
	}

	c.mu.Lock()
	c.sessions[holderID] = &session{conn: conn, key: key, events: records}
	log.Printf("coordinator: received log from holder %s (%d connected)", holderID, len(c.sessions))
	c.mu.Unlock()
}

// HolderCount reports how many holders have submitted a log so far.
func (c *Coordinator) HolderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Compute concatenates every connected holder's decrypted log, runs the
// engine exactly once, splits the sanitized output back out by
// Holder_ID, seals each holder's slice with its own key, sends it over
// that holder's still-open connection, and closes every connection.
func (c *Coordinator) Compute() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.sessions) == 0 {
		return fmt.Errorf("no holders connected")
	}

	roundID := uuid.New().String()
	log.Printf("coordinator: starting round %s with %d holders", roundID, len(c.sessions))

	holderIDs := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		holderIDs = append(holderIDs, id)
	}
	sort.Strings(holderIDs)

	var combined []engine.EventRecordLike
	for _, id := range holderIDs {
		for _, rec := range c.sessions[id].events {
			combined = append(combined, engine.EventRecordLike{
				CaseID: rec.CaseID, Activity: rec.Activity, Duration: rec.Duration, HolderID: id,
			})
		}
	}

	e := engine.NewSeeded(c.seed)
	result, err := e.Run(combined, true, c.params.K, c.params.T, c.params.Mode,
		c.params.DPEnabled, c.params.Epsilon, nil)
	if err != nil {
		c.sendErrorToAll(err)
		return fmt.Errorf("engine run: %w", err)
	}

	byHolder := make(map[string][]models.SanitizedEvent)
	for _, ev := range result.Events {
		byHolder[ev.HolderID] = append(byHolder[ev.HolderID], models.SanitizedEvent{
			CaseID: ev.CaseID, Activity: ev.Activity, Duration: ev.Duration, EventNr: ev.EventNr,
		})
	}

	for _, id := range holderIDs {
		sess := c.sessions[id]
		if err := c.sendResult(sess, byHolder[id]); err != nil {
			log.Printf("coordinator: sending result to holder %s: %v", id, err)
		}
		_ = sess.conn.Close()
	}

	c.sessions = make(map[string]*session)
	return nil
}

func (c *Coordinator) sendResult(sess *session, events []models.SanitizedEvent) error {
	var buf bytes.Buffer
	if err := logio.WriteTable(&buf, events, false); err != nil {
		return fmt.Errorf("serializing result table: %w", err)
	}

	sealed, err := seal(sess.key, buf.Bytes())
	if err != nil {
		return fmt.Errorf("sealing result: %w", err)
	}

	return writeFrame(sess.conn, sealed)
}

func (c *Coordinator) sendErrorToAll(computeErr error) {
	for _, sess := range c.sessions {
		_ = writeFrame(sess.conn, []byte("error: "+computeErr.Error()))
	}
}
