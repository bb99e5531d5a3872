// Package record keeps a JSON-lines log of finished operation runs.
package record

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/agentstation/operation"
)

// Record describes one finished run.
type Record struct {
	ID        string           `json:"id"`
	Operation string           `json:"operation"`
	Graph     string           `json:"graph"`
	Success   bool             `json:"success"`
	Status    operation.Status `json:"status,omitempty"`
	Aborted   bool             `json:"aborted,omitempty"`
	Started   time.Time        `json:"started"`
	Duration  time.Duration    `json:"duration_ns"`
	Path      []string         `json:"path"`
}

// New builds the record of op's last run.
func New(op *operation.Operation, r operation.Result, finished time.Time) Record {
	started := op.StartedAt()
	return Record{
		ID:        op.RunID(),
		Operation: op.Name(),
		Graph:     op.Graph().Fingerprint(),
		Success:   r.Success,
		Status:    r.Status,
		Aborted:   r.Aborted,
		Started:   started,
		Duration:  finished.Sub(started),
		Path:      op.Path(),
	}
}

// Writer appends records to w, one JSON document per line.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewWriter creates a writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, now: time.Now}
}

// Write appends rec.
func (w *Writer) Write(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Attach records every future run of op. Write errors are logged through
// the operation's Context logger.
func (w *Writer) Attach(op *operation.Operation) {
	op.OnResult(func(r operation.Result) {
		rec := New(op, r, w.now())
		if err := w.Write(rec); err != nil {
			op.Context().Logger.Error(context.Background(), "record run", "run_id", rec.ID, "error", err)
		}
	})
}

// Read decodes every record from r.
func Read(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return out, nil
}
