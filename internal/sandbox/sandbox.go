// Package sandbox executes untrusted submission code inside resource- and
// time-bounded Docker containers. Candidate misbehavior (non-zero exit,
// crash, hang, output flood) is recorded in the Outcome, never returned as
// an error; the error path is reserved for infrastructure failures and
// cancellation.
package sandbox

import (
	"context"
	"fmt"
	"time"
)

// Container paths shared with evaluators.
const (
	WorkspacePath = "/workspace"
	OutPath       = "/out"
)

// KilledExitCode marks a process that was forcibly terminated; it cannot
// collide with a real exit status.
const KilledExitCode = -1

type Limits struct {
	WallClock   time.Duration
	MemoryBytes int64
	CPU         float64
	Pids        int64
	OutputBytes int
}

type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// Spec describes one sandboxed execution. The workspace is bind-mounted
// read-only at /workspace (also the working directory); OutDir, when set,
// is bind-mounted writable at /out so harnesses and probes can hand results
// back without touching the snapshot.
type Spec struct {
	Image        string
	Command      []string
	Env          map[string]string
	WorkspaceDir string
	OutDir       string
	ExtraMounts  []Mount
	Network      bool
	Limits       Limits
}

// Outcome is the recorded result of one sandboxed run.
type Outcome struct {
	ExitCode  int
	TimedOut  bool
	Stdout    string
	Stderr    string
	Truncated bool
	Duration  time.Duration
}

// Runner executes a Spec. Implementations must return an *InfraError when
// the sandbox itself cannot be allocated or torn down, the context error
// when cancelled, and otherwise an Outcome even for misbehaving commands.
type Runner interface {
	Run(ctx context.Context, spec Spec) (*Outcome, error)
}

// InfraError reports a sandbox allocation or teardown failure,
// distinguishable from anything the candidate code did.
type InfraError struct {
	Op  string
	Err error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("sandbox infrastructure: %s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error { return e.Err }
