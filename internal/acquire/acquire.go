// Package acquire resolves submission references (git URLs, local
// directories, archives) into frozen local workspace snapshots, verifying
// that the fetched content looks like a gradable project.
package acquire

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"raggrader/internal/config"
)

// Workspace is an acquired submission snapshot. It is owned by exactly one
// grading pipeline; sandboxes mount Dir read-only, and Close removes it.
type Workspace struct {
	ID       string
	Ref      string
	Dir      string
	Language string
	MainFile string
}

func (w *Workspace) Close() error {
	if w.Dir == "" {
		return nil
	}
	return os.RemoveAll(w.Dir)
}

type Acquirer struct {
	root    string
	timeout time.Duration
	limiter *rate.Limiter
	log     *zap.Logger
}

func New(cfg config.Acquisition, log *zap.Logger) *Acquirer {
	perSecond := rate.Limit(float64(cfg.ClonesPerMinute) / 60.0)
	return &Acquirer{
		root:    cfg.WorkspaceRoot,
		timeout: cfg.Timeout(),
		limiter: rate.NewLimiter(perSecond, 1),
		log:     log.Named("acquire"),
	}
}

// Acquire fetches the referenced code into a fresh workspace directory and
// verifies its structure. Failures are *Error values; the workspace is
// removed on every failure path.
func (a *Acquirer) Acquire(ctx context.Context, ref string) (ws *Workspace, err error) {
	if strings.TrimSpace(ref) == "" {
		return nil, newError(KindMalformed, ref, "empty reference", nil)
	}

	root := a.root
	if root == "" {
		root = filepath.Join(os.TempDir(), "raggrader")
	}
	id := fmt.Sprintf("sub_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("allocating workspace: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	if isRemote(ref) {
		err = a.clone(ctx, ref, dir)
	} else {
		err = a.snapshotLocal(ref, dir)
	}
	if err != nil {
		return nil, err
	}

	language, mainFile, verr := verifyStructure(dir)
	if verr != nil {
		return nil, newError(KindMalformed, ref, verr.Error(), nil)
	}

	a.log.Info("acquired submission",
		zap.String("ref", ref),
		zap.String("workspace", dir),
		zap.String("language", language),
		zap.String("main_file", mainFile))
	return &Workspace{ID: id, Ref: ref, Dir: dir, Language: language, MainFile: mainFile}, nil
}

func isRemote(ref string) bool {
	for _, p := range []string{"https://", "http://", "ssh://", "git://", "file://", "git@"} {
		if strings.HasPrefix(ref, p) {
			return true
		}
	}
	return false
}

func (a *Acquirer) clone(ctx context.Context, ref, dest string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return newError(KindTimeout, ref, "waiting for clone rate limit", err)
	}
	cloneCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(cloneCtx, "git", "clone", "--depth", "1", ref, dest)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if cloneCtx.Err() == context.DeadlineExceeded {
		return newError(KindTimeout, ref, "clone exceeded acquisition budget", nil)
	}
	return classifyCloneFailure(ref, string(out))
}

// classifyCloneFailure maps git's output onto the acquisition error kinds.
// Anything unrecognized counts as an unresolvable reference.
func classifyCloneFailure(ref, out string) *Error {
	lower := strings.ToLower(out)
	authMarkers := []string{
		"authentication failed",
		"permission denied",
		"could not read username",
		"could not read password",
		"access denied",
		"403",
	}
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return newError(KindUnauthorized, ref, excerpt(out), nil)
		}
	}
	return newError(KindNotFound, ref, excerpt(out), nil)
}

// excerpt picks the most telling line of git output: the first fatal/error
// line, or failing that the first non-empty one.
func excerpt(out string) string {
	var first string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if first == "" {
			first = line
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "fatal:") || strings.HasPrefix(lower, "error:") {
			first = line
			break
		}
	}
	if len(first) > 200 {
		first = first[:200]
	}
	return first
}

func (a *Acquirer) snapshotLocal(ref, dest string) error {
	info, err := os.Stat(ref)
	switch {
	case os.IsNotExist(err):
		return newError(KindNotFound, ref, "no such file or directory", nil)
	case os.IsPermission(err):
		return newError(KindUnauthorized, ref, "", err)
	case err != nil:
		return newError(KindNotFound, ref, "", err)
	}
	if info.IsDir() {
		if err := copyDir(ref, dest); err != nil {
			return fmt.Errorf("copying submission directory: %w", err)
		}
		return nil
	}
	if !isArchive(ref) {
		return newError(KindMalformed, ref, "not a directory or supported archive", nil)
	}
	if err := extractArchive(ref, dest); err != nil {
		return newError(KindMalformed, ref, err.Error(), nil)
	}
	return hoistSingleDir(dest)
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, filepath.Join(dst, rel))
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// hoistSingleDir flattens archives that wrap the project in one top-level
// folder, the way repository export archives do.
func hoistSingleDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return err
	}
	tmp := filepath.Join(dir, entries[0].Name()+".hoist")
	if err := os.Rename(filepath.Join(dir, entries[0].Name()), tmp); err != nil {
		return err
	}
	children, err := os.ReadDir(tmp)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := os.Rename(filepath.Join(tmp, c.Name()), filepath.Join(dir, c.Name())); err != nil {
			return err
		}
	}
	return os.Remove(tmp)
}
