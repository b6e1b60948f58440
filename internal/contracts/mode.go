package contracts

import "fmt"

// ExecutionMode selects dry-run or live execution. It is threaded
// explicitly through the engine's call signature, never inferred from
// the environment at run time.
type ExecutionMode string

const (
	ModeDryRun ExecutionMode = "dry_run"
	ModeLive   ExecutionMode = "live"
)

// LiveConfirmToken is the literal confirmation required before the order
// manager may submit real orders. Anything else degrades a live run to
// dry-run.
const LiveConfirmToken = "CONFIRM-LIVE"

// ParseMode parses a mode string from configuration.
func ParseMode(s string) (ExecutionMode, error) {
	switch ExecutionMode(s) {
	case ModeDryRun, ModeLive:
		return ExecutionMode(s), nil
	default:
		return "", fmt.Errorf("invalid execution mode %q (use: dry_run, live)", s)
	}
}
