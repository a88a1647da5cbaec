package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
	"github.com/orchestratord/oj/internal/state"
)

// Replay reconstructs model.State by loading the most recent snapshot (if
// any) and applying every WAL entry after its seq, in order. It is the
// engine's sole path to a materialized state, both at startup and in
// tests that want to assert on apply() without standing up a live loop.
func Replay(dir string) (model.State, error) {
	s := model.NewState()
	afterSeq := uint64(0)

	env, ok, err := ReadSnapshot(dir)
	if err != nil {
		return model.State{}, err
	}
	if ok {
		s = env.State
		afterSeq = env.Seq
	}

	path := filepath.Join(dir, "wal", "events.wal")
	err = ReadFrom(path, afterSeq, func(e event.Envelope) error {
		s = state.Apply(s, e)
		return nil
	})
	if err != nil {
		return model.State{}, err
	}
	return s, nil
}

// Compact snapshots state (materialized up to s.LastSeq) to dir, then
// rewrites wl's own WAL file to keep only the entries s does not yet
// reflect (seq > s.LastSeq) — the snapshot's own seq is already folded
// into s, so the kept tail starts strictly after it, the same boundary
// Replay uses when streaming the post-snapshot tail.
//
// The snapshot's seq is taken from s.LastSeq — the seq of the event
// that produced this exact clone — never from wl.nextSeq, which may
// have advanced past s if further events were appended and applied
// concurrently with the clone being taken. wl.mu is held for the whole
// read-filter-rewrite sequence, which serializes against Append (it
// also takes wl.mu): any event appended after the clone was taken but
// before Compact acquires the lock is still sitting in the on-disk file
// with a seq greater than s.LastSeq, so the keep-tail filter preserves
// it verbatim instead of losing it to an unconditional truncate.
func (wl *WAL) Compact(dir string, s model.State) error {
	if err := wl.Flush(); err != nil {
		return err
	}
	wl.mu.Lock()
	defer wl.mu.Unlock()

	seq := s.LastSeq
	if err := WriteSnapshot(dir, seq, s); err != nil {
		return err
	}

	tail, err := collectTail(wl.path, seq)
	if err != nil {
		return fmt.Errorf("collect wal tail for compaction: %w", err)
	}

	tmp := wl.path + ".compact.tmp"
	tf, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create wal compaction tmp: %w", err)
	}
	for _, line := range tail {
		if _, err := tf.Write(line); err != nil {
			_ = tf.Close()
			return fmt.Errorf("write wal compaction tmp: %w", err)
		}
	}
	if err := tf.Sync(); err != nil {
		_ = tf.Close()
		return fmt.Errorf("fsync wal compaction tmp: %w", err)
	}
	if err := tf.Close(); err != nil {
		return fmt.Errorf("close wal compaction tmp: %w", err)
	}

	if err := wl.f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, wl.path); err != nil {
		return fmt.Errorf("rename compacted wal into place: %w", err)
	}
	if err := syncDir(filepath.Dir(wl.path)); err != nil {
		return err
	}

	f, err := os.OpenFile(wl.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reopen wal after compaction: %w", err)
	}
	wl.f = f
	wl.w = bufio.NewWriter(f)
	return nil
}

// collectTail reads path and returns the raw lines (with their trailing
// newline) for every entry with Seq > afterSeq, preserving file order.
// It is tolerant of a torn trailing line (the same corruption case
// recoverAndScan handles) since a concurrent Append may be mid-flush
// when this runs; a trailing line that fails to parse is simply dropped
// rather than treated as fatal, since Append will re-flush it as a
// fresh buffered write that is still pending when Compact takes wl.mu.
func collectTail(path string, afterSeq uint64) ([][]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var kept [][]byte
	r := bufio.NewReader(f)
	for {
		line, readErr := r.ReadBytes('\n')
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			var e event.Envelope
			if jsonErr := json.Unmarshal(trimmed, &e); jsonErr == nil && e.Seq > afterSeq {
				kept = append(kept, line)
			}
		}
		if readErr != nil {
			break
		}
	}
	return kept, nil
}
