// Package store persists per-day flat files: portfolio snapshots and
// execution pulls. There is deliberately no database here; one JSON file
// per day is the durable record.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/quantfell/rotator/internal/contracts"
)

const dateLayout = "2006-01-02"

// SaveSnapshot writes the snapshot as snapshot_YYYY-MM-DD.json and
// returns the path. A second save on the same day supersedes the first.
func SaveSnapshot(dir string, snap *contracts.PortfolioSnapshot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshots dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%s.json", snap.Timestamp.UTC().Format(dateLayout))
	path := filepath.Join(dir, name)

	if err := writeJSON(path, snap); err != nil {
		return "", err
	}
	return path, nil
}

// LoadLatestSnapshot returns the most recent snapshot in dir, or nil if
// none exist.
func LoadLatestSnapshot(dir string) (*contracts.PortfolioSnapshot, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshots dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "snapshot_") && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	// Date-stamped names sort chronologically.
	sort.Strings(names)
	path := filepath.Join(dir, names[len(names)-1])

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var snap contracts.PortfolioSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// SaveExecutions writes the day's fills as executions_YYYY-MM-DD.json.
func SaveExecutions(dir string, date time.Time, execs []contracts.Execution) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create executions dir: %w", err)
	}

	name := fmt.Sprintf("executions_%s.json", date.UTC().Format(dateLayout))
	path := filepath.Join(dir, name)

	if execs == nil {
		execs = []contracts.Execution{}
	}
	if err := writeJSON(path, execs); err != nil {
		return "", err
	}
	return path, nil
}

// writeJSON persists v atomically (temp file + rename).
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}
