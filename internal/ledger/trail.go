// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ledger

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	trailQueueSize     = 1000
	trailFlushInterval = 5 * time.Second
)

// Trail appends routing decisions to a JSONL file through an async write
// queue, so recording a decision never blocks on disk. Durability is
// best-effort: a full queue drops the entry with a warning and the
// in-memory ledger stays authoritative.
//
// When a segment grows past its size limit the file is rotated; finished
// segments are compressed and optionally shipped to object storage.
type Trail struct {
	path     string
	maxBytes int64
	archiver *Archiver

	queue  chan Entry
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	file    *os.File
	written int64
}

// NewTrail opens (or creates) the trail file and starts the background
// writer. segmentMaxMB of 0 disables rotation; archiver may be nil.
func NewTrail(path string, segmentMaxMB int, archiver *Archiver) (*Trail, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trail directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open trail file: %w", err)
	}

	var written int64
	if info, err := file.Stat(); err == nil {
		written = info.Size()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Trail{
		path:     path,
		maxBytes: int64(segmentMaxMB) * 1024 * 1024,
		archiver: archiver,
		queue:    make(chan Entry, trailQueueSize),
		ctx:      ctx,
		cancel:   cancel,
		file:     file,
		written:  written,
	}

	t.wg.Add(1)
	go t.writeWorker()
	return t, nil
}

// Append queues an entry for writing. It never blocks: once the queue is
// full or the trail is shutting down, entries are dropped with a warning.
func (t *Trail) Append(e Entry) {
	select {
	case <-t.ctx.Done():
		return
	default:
	}

	select {
	case t.queue <- e:
	default:
		log.Warnf("Routing trail queue is full, dropping entry (queue size: %d)", trailQueueSize)
	}
}

// writeWorker drains the queue, flushes on a timer, and finishes remaining
// writes on shutdown.
func (t *Trail) writeWorker() {
	defer t.wg.Done()

	ticker := time.NewTicker(trailFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case e := <-t.queue:
			if err := t.writeEntry(e); err != nil {
				log.Errorf("Failed to write trail entry: %v", err)
			}
		case <-ticker.C:
			t.flush()
		case <-t.ctx.Done():
			t.drainQueue()
			return
		}
	}
}

func (t *Trail) writeEntry(e Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal trail entry: %w", err)
	}
	data = append(data, '\n')

	n, err := t.file.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write trail entry: %w", err)
	}
	t.written += int64(n)

	if t.maxBytes > 0 && t.written >= t.maxBytes {
		if err := t.rotateLocked(); err != nil {
			return fmt.Errorf("failed to rotate trail segment: %w", err)
		}
	}
	return nil
}

// rotateLocked closes the active file, renames it to a timestamped segment,
// reopens a fresh file, and hands the finished segment to a background
// compress-and-archive pass. Assumes t.mu is held.
func (t *Trail) rotateLocked() error {
	if err := t.file.Close(); err != nil {
		return err
	}

	ext := filepath.Ext(t.path)
	segment := strings.TrimSuffix(t.path, ext) +
		"-" + time.Now().UTC().Format("20060102T150405") + ext
	if err := os.Rename(t.path, segment); err != nil {
		return err
	}

	file, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	t.file = file
	t.written = 0

	log.Infof("Rotated routing trail segment: %s", segment)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.finishSegment(segment)
	}()
	return nil
}

// finishSegment compresses a rotated segment and optionally uploads it.
// Failures are logged; the raw segment is left in place for a later retry
// by hand.
func (t *Trail) finishSegment(segment string) {
	compressed, err := compressSegment(segment)
	if err != nil {
		log.Errorf("Failed to compress trail segment %s: %v", segment, err)
		return
	}

	if t.archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := t.archiver.Upload(ctx, compressed); err != nil {
		log.Errorf("Failed to archive trail segment %s: %v", compressed, err)
	}
}

func (t *Trail) flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file != nil {
		if err := t.file.Sync(); err != nil {
			log.Errorf("Failed to sync trail file: %v", err)
		}
	}
}

func (t *Trail) drainQueue() {
	for {
		select {
		case e := <-t.queue:
			if err := t.writeEntry(e); err != nil {
				log.Errorf("Failed to write trail entry: %v", err)
			}
		default:
			t.flush()
			return
		}
	}
}

// ReadRecent returns up to limit entries from the active trail file in
// chronological order. Unparseable lines are skipped so one corrupt write
// cannot poison a replay.
func (t *Trail) ReadRecent(limit int) []Entry {
	file, err := os.Open(t.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Errorf("Failed to open trail file for replay: %v", err)
		}
		return nil
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		log.Errorf("Error reading trail file: %v", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

// Close drains pending writes and closes the trail file.
func (t *Trail) Close() error {
	t.cancel()
	t.wg.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file != nil {
		if err := t.file.Close(); err != nil {
			return fmt.Errorf("failed to close trail file: %w", err)
		}
		t.file = nil
	}
	return nil
}
