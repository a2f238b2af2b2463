package httpapi

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/DFY-Network/pawnshop_layer/internal/app/events"
)

// FileAuditSink appends event records to a JSONL file. It is wired as a bus
// subscriber so every state transition leaves a durable trace beyond the
// in-memory ring served by /audit.
type FileAuditSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileAuditSink opens (or creates) the audit file in append mode.
func NewFileAuditSink(path string) (*FileAuditSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &FileAuditSink{file: f, enc: json.NewEncoder(f)}, nil
}

// Record writes one event as a JSON line. Write errors are swallowed; audit
// persistence must never block a state transition.
func (s *FileAuditSink) Record(rec events.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(rec)
}

// Close releases the underlying file.
func (s *FileAuditSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
