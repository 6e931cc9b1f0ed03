package compliance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AuditWriter appends compliance flags to a tamper-evident log file. Each
// record carries the hash of its predecessor, so any edit or deletion breaks
// the chain. One writer serves all calls.
type AuditWriter struct {
	path     string
	mu       sync.Mutex
	lastHash string
}

// NewAuditWriter creates a writer for the given path. The file is created on
// first append.
func NewAuditWriter(path string) *AuditWriter {
	return &AuditWriter{path: path}
}

// AuditRecord is the persisted form of one compliance flag.
type AuditRecord struct {
	Timestamp time.Time `json:"timestamp"`
	CallUUID  string    `json:"call_uuid"`
	Flag      Flag      `json:"flag"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// Append writes one flag and advances the chain.
func (w *AuditWriter) Append(callID string, flag Flag) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	record := AuditRecord{
		Timestamp: time.Now().UTC(),
		CallUUID:  callID,
		Flag:      flag,
		PrevHash:  w.lastHash,
	}
	if err := record.computeHash(); err != nil {
		return err
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	if _, err := file.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	w.lastHash = record.Hash
	return nil
}

func (r *AuditRecord) computeHash() error {
	raw, err := json.Marshal(struct {
		Timestamp time.Time `json:"timestamp"`
		CallUUID  string    `json:"call_uuid"`
		Flag      Flag      `json:"flag"`
		PrevHash  string    `json:"prev_hash"`
	}{
		Timestamp: r.Timestamp,
		CallUUID:  r.CallUUID,
		Flag:      r.Flag,
		PrevHash:  r.PrevHash,
	})
	if err != nil {
		return err
	}
	hash := sha256.Sum256(raw)
	r.Hash = hex.EncodeToString(hash[:])
	return nil
}

// VerifyAuditLog re-walks a log file and reports the first broken link, if
// any. Used by offline review tooling and tests.
func VerifyAuditLog(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	prev := ""
	for i, line := range splitLines(raw) {
		var record AuditRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if record.PrevHash != prev {
			return fmt.Errorf("record %d: chain broken", i)
		}
		want := record.Hash
		if err := record.computeHash(); err != nil {
			return err
		}
		if record.Hash != want {
			return fmt.Errorf("record %d: hash mismatch", i)
		}
		prev = record.Hash
	}
	return nil
}

func splitLines(raw []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, b := range raw {
		if b == '\n' {
			if i > start {
				out = append(out, raw[start:i])
			}
			start = i + 1
		}
	}
	if start < len(raw) {
		out = append(out, raw[start:])
	}
	return out
}
