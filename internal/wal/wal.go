// Package wal implements the engine's write-ahead-log and snapshot
// durability layer: append-only JSONL events, a background flusher
// batching to a fixed tick or count, durability defined as
// write+sync+directory-sync before any caller observes a commit, and a
// periodic compressed snapshot that allows WAL compaction.
package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/orchestratord/oj/internal/event"
)

const (
	// flushTick is the background flusher's default interval.
	flushTick = 10 * time.Millisecond
	// flushBatchSize forces an out-of-band flush once the buffer reaches
	// this many entries, independent of the tick.
	flushBatchSize = 100
)

// WAL is the append-only event log. One WAL owns one events.wal file for
// the lifetime of the daemon process; Append is safe for concurrent use,
// but the engine only ever calls it from the single event loop goroutine
// per the "no lock held across an await" / single-writer contract.
type WAL struct {
	path string

	mu      sync.Mutex
	f       *os.File
	w       *bufio.Writer
	nextSeq uint64

	pending   []pendingWrite
	flushReq  chan chan error
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

type pendingWrite struct {
	line []byte
}

// Open opens (creating if absent) the WAL file at dir/wal/events.wal,
// seeding the sequence counter from the highest seq found. Callers must
// already hold the state-directory pid lock (see AcquirePidLock).
func Open(dir string) (*WAL, error) {
	walDir := filepath.Join(dir, "wal")
	if err := os.MkdirAll(walDir, 0o755); err != nil {
		return nil, fmt.Errorf("create wal dir: %w", err)
	}
	path := filepath.Join(walDir, "events.wal")

	lastSeq, err := recoverAndScan(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}

	wl := &WAL{
		path:     path,
		f:        f,
		w:        bufio.NewWriter(f),
		nextSeq:  lastSeq + 1,
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
	}
	wl.wg.Add(1)
	go wl.flusherLoop()
	return wl, nil
}

// Append assigns the next sequence number to e, serializes it, and
// buffers it for the background flusher. It does not block for
// durability — callers that need a durability guarantee (e.g. an IPC
// response) must call Flush afterward, per invariant (5).
func (wl *WAL) Append(e event.Envelope) (uint64, error) {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	e.Seq = wl.nextSeq
	wl.nextSeq++

	line, err := json.Marshal(e)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	if _, err := wl.w.Write(line); err != nil {
		return 0, fmt.Errorf("buffer wal entry: %w", err)
	}
	wl.pending = append(wl.pending, pendingWrite{line: line})

	if len(wl.pending) >= flushBatchSize {
		if err := wl.flushLocked(); err != nil {
			return e.Seq, err
		}
	}
	return e.Seq, nil
}

// Flush forces the buffered writer to the OS, fsyncs the file, then
// fsyncs the containing directory — the full durability sequence. Safe
// to call from any goroutine; serializes on wl.mu.
func (wl *WAL) Flush() error {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	return wl.flushLocked()
}

func (wl *WAL) flushLocked() error {
	if len(wl.pending) == 0 {
		return nil
	}
	if err := wl.w.Flush(); err != nil {
		return fmt.Errorf("flush wal buffer: %w", err)
	}
	if err := wl.f.Sync(); err != nil {
		return fmt.Errorf("fsync wal file: %w", err)
	}
	if err := syncDir(filepath.Dir(wl.path)); err != nil {
		return fmt.Errorf("fsync wal dir: %w", err)
	}
	wl.pending = wl.pending[:0]
	return nil
}

func (wl *WAL) flusherLoop() {
	defer wl.wg.Done()
	t := time.NewTicker(flushTick)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = wl.Flush()
		case reply := <-wl.flushReq:
			reply <- wl.Flush()
		case <-wl.done:
			_ = wl.Flush()
			return
		}
	}
}

// Close stops the background flusher (after a final flush) and closes
// the underlying file.
func (wl *WAL) Close() error {
	var err error
	wl.closeOnce.Do(func() {
		close(wl.done)
		wl.wg.Wait()
		wl.mu.Lock()
		err = wl.f.Close()
		wl.mu.Unlock()
	})
	return err
}

// NextSeq reports the sequence number the next Append will assign,
// useful for tests asserting monotonicity across a restart.
func (wl *WAL) NextSeq() uint64 {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	return wl.nextSeq
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
