package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/orchestratord/oj/internal/event"
)

// recoverAndScan scans path line by line, validating each JSON line and
// returning the highest seq found. Corruption is handled two ways:
//
//   - a parse failure on the trailing line is treated as truncation (a
//     torn write from a crash mid-append) and the file is truncated to
//     the offset before that line;
//   - a parse failure on a non-terminal line rotates the whole file to a
//     .bak generation and keeps only the valid prefix as the new log.
func recoverAndScan(path string) (uint64, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var lastSeq uint64
	var offset int64

	for {
		line, readErr := r.ReadBytes('\n')
		trimmed := bytes.TrimRight(line, "\n")
		if len(trimmed) > 0 {
			var e event.Envelope
			if jsonErr := json.Unmarshal(trimmed, &e); jsonErr != nil {
				rest, _ := io.ReadAll(r)
				if len(bytes.TrimSpace(rest)) == 0 {
					// Trailing corruption: truncate at the offset before this line.
					return lastSeq, truncateFile(path, offset)
				}
				// Non-terminal corruption: rotate whole file to backup, keep the
				// valid prefix (everything before offset) as the new log.
				return lastSeq, rotateKeepPrefix(path, offset)
			}
			lastSeq = e.Seq
		}
		offset += int64(len(line))
		if readErr != nil {
			break // clean EOF
		}
	}
	return lastSeq, nil
}

func truncateFile(path string, offset int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(offset)
}

func rotateKeepPrefix(path string, offset int64) error {
	prefix, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if offset > int64(len(prefix)) {
		offset = int64(len(prefix))
	}
	prefix = prefix[:offset]

	if err := rotateToBackup(path); err != nil {
		return err
	}
	return os.WriteFile(path, prefix, 0o644)
}

// ReadFrom streams every entry with Seq > afterSeq to fn, in order. Used
// by Replay to apply the WAL tail beyond the last snapshot.
func ReadFrom(path string, afterSeq uint64, fn func(event.Envelope) error) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e event.Envelope
		if err := json.Unmarshal(line, &e); err != nil {
			// Open() already ran recovery; a line failing here means it was
			// appended (and flushed) after Open but is somehow unparsable —
			// treat as a stop condition rather than panicking mid-replay.
			break
		}
		if e.Seq <= afterSeq {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
