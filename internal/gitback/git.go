package gitback

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"draftsync/internal/diffview"
)

// Git drives the git CLI in one working directory. Network commands run with
// interactive credential prompting disabled so an auth failure surfaces as an
// error instead of hanging on a prompt.
type Git struct {
	workDir string
	remote  string
	logger  *zap.Logger
}

var _ Backend = (*Git)(nil)

func NewGit(workDir, remote string, logger *zap.Logger) *Git {
	if remote == "" {
		remote = "origin"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Git{workDir: workDir, remote: remote, logger: logger}
}

func (g *Git) run(ctx context.Context, op string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.workDir
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_ASKPASS=true",
		"LC_ALL=C",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		raw := strings.TrimSpace(stderr.String() + "\n" + stdout.String())
		kind := classify(raw)
		g.logger.Debug("git command failed",
			zap.String("op", op),
			zap.String("kind", kind.String()),
			zap.String("output", raw),
		)
		return stdout.String(), &BackendError{Op: op, Kind: kind, RawMessage: raw, Err: err}
	}
	return stdout.String(), nil
}

func (g *Git) IsRepo(ctx context.Context) bool {
	out, err := g.run(ctx, "rev-parse", "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

func (g *Git) Status(ctx context.Context) (*Status, error) {
	out, err := g.run(ctx, "status", "status", "--porcelain=v2", "--branch")
	if err != nil {
		return nil, err
	}
	return parseStatus(out), nil
}

func (g *Git) Fetch(ctx context.Context) error {
	_, err := g.run(ctx, "fetch", "fetch", g.remote)
	return err
}

func (g *Git) Pull(ctx context.Context) error {
	// Merge, not rebase: a conflicted merge leaves markers in the working
	// tree, which is the state the conflict parser consumes.
	_, err := g.run(ctx, "pull", "pull", "--no-rebase")
	return err
}

func (g *Git) Push(ctx context.Context) error {
	_, err := g.run(ctx, "push", "push")
	return err
}

func (g *Git) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, "commit", "commit", "-m", message)
	return err
}

func (g *Git) Add(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	_, err := g.run(ctx, "add", args...)
	return err
}

func (g *Git) AddAll(ctx context.Context) error {
	_, err := g.run(ctx, "add", "add", "-A")
	return err
}

func (g *Git) Stash(ctx context.Context) error {
	_, err := g.run(ctx, "stash", "stash", "push", "--include-untracked", "-m", "draftsync autostash")
	return err
}

func (g *Git) StashPop(ctx context.Context) error {
	_, err := g.run(ctx, "stash-pop", "stash", "pop")
	return err
}

func (g *Git) Checkout(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "checkout", "checkout", branch)
	return err
}

func (g *Git) AbortMerge(ctx context.Context) error {
	_, err := g.run(ctx, "merge-abort", "merge", "--abort")
	return err
}

func (g *Git) Diff(ctx context.Context, ref, path string) ([]diffview.Hunk, error) {
	args := []string{"diff"}
	if ref != "" {
		args = append(args, ref)
	}
	if path != "" {
		args = append(args, "--", path)
	}
	out, err := g.run(ctx, "diff", args...)
	if err != nil {
		return nil, err
	}
	return diffview.Parse(out)
}

// parseStatus reads `git status --porcelain=v2 --branch` output.
func parseStatus(out string) *Status {
	st := &Status{}
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "# branch.head "):
			st.CurrentBranch = strings.TrimPrefix(line, "# branch.head ")

		case strings.HasPrefix(line, "# branch.upstream "):
			st.TrackingBranch = strings.TrimPrefix(line, "# branch.upstream ")

		case strings.HasPrefix(line, "# branch.ab "):
			fields := strings.Fields(strings.TrimPrefix(line, "# branch.ab "))
			if len(fields) == 2 {
				st.AheadCount, _ = strconv.Atoi(strings.TrimPrefix(fields[0], "+"))
				st.BehindCount, _ = strconv.Atoi(strings.TrimPrefix(fields[1], "-"))
			}

		case strings.HasPrefix(line, "1 ") || strings.HasPrefix(line, "2 "):
			fields := strings.Fields(line)
			if len(fields) > 0 {
				st.ChangedPaths = append(st.ChangedPaths, fields[len(fields)-1])
			}

		case strings.HasPrefix(line, "u "):
			fields := strings.Fields(line)
			if len(fields) > 0 {
				st.ChangedPaths = append(st.ChangedPaths, fields[len(fields)-1])
			}

		case strings.HasPrefix(line, "? "):
			st.ChangedPaths = append(st.ChangedPaths, strings.TrimPrefix(line, "? "))
		}
	}
	return st
}
