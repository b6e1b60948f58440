package execution

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/quantfell/rotator/internal/contracts"
	"github.com/quantfell/rotator/pkg/logger"
)

// AuditEntry is the persisted record of a single execution run. Exactly
// one entry is written per run, on every path including blocked and
// failed runs.
type AuditEntry struct {
	RunID       string                    `json:"run_id"`
	Timestamp   time.Time                 `json:"timestamp"`
	Mode        contracts.ExecutionMode   `json:"mode"`
	Outcome     string                    `json:"outcome"` // completed, blocked, failed
	Error       string                    `json:"error,omitempty"`
	TotalEquity float64                   `json:"total_equity,omitempty"`
	Cash        float64                   `json:"cash,omitempty"`
	SnapshotAt  time.Time                 `json:"snapshot_at,omitempty"`
	Signal      *contracts.Signal         `json:"signal,omitempty"`
	Trades      []contracts.ProposedTrade `json:"trades,omitempty"`
	Verdicts    []contracts.RiskVerdict   `json:"verdicts,omitempty"`
	Orders      []contracts.OrderResult   `json:"orders,omitempty"`
}

// AuditLog writes run records to an append-only directory, one JSON
// file per run named by run timestamp and ID.
type AuditLog struct {
	dir    string
	logger *logger.Logger
}

func NewAuditLog(dir string, log *logger.Logger) *AuditLog {
	return &AuditLog{dir: dir, logger: log}
}

func (a *AuditLog) Record(entry *AuditEntry) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	name := fmt.Sprintf("run_%s_%s.json", entry.Timestamp.UTC().Format("20060102T150405"), entry.RunID)
	path := filepath.Join(a.dir, name)

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit audit entry: %w", err)
	}

	a.logger.WithFields(map[string]interface{}{
		"run_id":  entry.RunID,
		"outcome": entry.Outcome,
		"file":    name,
	}).Debug("audit entry written")
	return nil
}

// Recent returns up to limit entries, newest first.
func (a *AuditLog) Recent(limit int) ([]*AuditEntry, error) {
	files, err := os.ReadDir(a.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit dir: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		if !f.IsDir() && filepath.Ext(f.Name()) == ".json" {
			names = append(names, f.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	entries := make([]*AuditEntry, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(a.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read audit entry %s: %w", name, err)
		}
		var entry AuditEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			a.logger.WithField("file", name).Warn("skipping unreadable audit entry")
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}
