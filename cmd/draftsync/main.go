// cmd/draftsync/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"draftsync/internal/config"
	"draftsync/internal/diffview"
	"draftsync/internal/gitback"
	"draftsync/internal/logging"
	"draftsync/internal/mergesvc"
	"draftsync/internal/snapshot"
	"draftsync/internal/syncer"
)

var rootCmd = &cobra.Command{
	Use:   "draftsync",
	Short: "draftsync keeps locally edited documents in sync with a git remote",
	Long: `draftsync synchronizes a locally edited document with its remote-tracked
copy: pull, push with automatic stash/pull/pop recovery, and section-by-section
conflict resolution when the two sides diverge.`,
}

// app bundles everything a command needs. Built per invocation, torn down by
// close.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	backend   gitback.Backend
	registry  *syncer.Registry
	snapshots *snapshot.Store
	db        *badger.DB
}

func newApp() (*app, error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	backend := gitback.NewGit(cfg.WorkDir, cfg.Remote, logger.Logger)
	if !backend.IsRepo(context.Background()) {
		return nil, fmt.Errorf("%s is not a git repository", cfg.WorkDir)
	}

	a := &app{cfg: cfg, logger: logger, backend: backend}

	if cfg.SnapshotDir != "" {
		opts := badger.DefaultOptions(cfg.SnapshotDir)
		opts.Logger = nil
		a.db, err = badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("opening snapshot database: %w", err)
		}
		a.snapshots, err = snapshot.New(a.db, snapshot.Options{})
		if err != nil {
			a.db.Close()
			return nil, fmt.Errorf("initializing snapshot store: %w", err)
		}
	}

	a.registry = syncer.NewRegistry(syncer.RegistryOptions{
		WorkDir:   cfg.WorkDir,
		Backend:   backend,
		Snapshots: a.snapshots,
		Logger:    logger.Logger,
	})
	return a, nil
}

func (a *app) close() {
	if a.snapshots != nil {
		a.snapshots.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Sync()
}

func (a *app) open(path string) (*syncer.SyncSession, error) {
	rel := path
	if filepath.IsAbs(path) {
		var err error
		rel, err = filepath.Rel(a.cfg.WorkDir, path)
		if err != nil {
			return nil, err
		}
	}
	return a.registry.Open(filepath.ToSlash(rel))
}

func reportOutcome(outcome syncer.Outcome) error {
	switch outcome.Kind {
	case syncer.OutcomeSuccess:
		color.Green("up to date")
		return nil
	case syncer.OutcomeConflict:
		color.Yellow("conflicts detected; run 'draftsync resolve' to resolve them")
		return nil
	default:
		return outcome.Err
	}
}

func init() {
	var statusCmd = &cobra.Command{
		Use:   "status [file]",
		Short: "Show branch, ahead/behind counts and changed paths",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.backend.Status(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("branch:   %s\n", st.CurrentBranch)
			if st.TrackingBranch != "" {
				fmt.Printf("tracking: %s (ahead %d, behind %d)\n",
					st.TrackingBranch, st.AheadCount, st.BehindCount)
			}
			if len(st.ChangedPaths) == 0 {
				color.Green("working tree clean")
				return nil
			}
			for _, p := range st.ChangedPaths {
				color.Yellow("  modified: %s", p)
			}
			return nil
		},
	}

	var pullCmd = &cobra.Command{
		Use:   "pull <file>",
		Short: "Pull remote changes for a tracked file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.open(args[0])
			if err != nil {
				return err
			}
			return reportOutcome(s.PullWithConflictDetection(cmd.Context()))
		},
	}

	var pushCmd = &cobra.Command{
		Use:   "push <file>",
		Short: "Push local commits, recovering automatically if the remote diverged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.open(args[0])
			if err != nil {
				return err
			}
			return reportOutcome(s.PushWithConflictHandling(cmd.Context()))
		},
	}

	var commitMessage string
	var commitCmd = &cobra.Command{
		Use:   "commit <file>",
		Short: "Commit a tracked file and push it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.open(args[0])
			if err != nil {
				return err
			}
			return reportOutcome(s.CommitAndPush(cmd.Context(), commitMessage))
		},
	}
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "Update document", "commit message")

	var keepLocal, keepRemote, keepBoth, useMerge []int
	var abortResolve bool
	var resolveCmd = &cobra.Command{
		Use:   "resolve <file>",
		Short: "Resolve conflict sections in a conflicted file",
		Long: `Resolve reads the conflicted file, lists its sections, applies any
--local/--remote/--both/--merge choices, and finalizes once every section is
resolved. --merge sends the section to the configured merge service.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.open(args[0])
			if err != nil {
				return err
			}

			text, err := s.ResumeResolution()
			if err != nil {
				return err
			}
			res, err := s.OpenResolution(text)
			if err != nil {
				return err
			}

			if abortResolve {
				if err := res.Cancel(cmd.Context()); err != nil {
					return err
				}
				color.Green("resolution abandoned, working copy restored")
				return nil
			}

			for _, id := range keepLocal {
				if err := res.KeepLocal(id); err != nil {
					return err
				}
			}
			for _, id := range keepRemote {
				if err := res.KeepRemote(id); err != nil {
					return err
				}
			}
			for _, id := range keepBoth {
				if err := res.KeepBoth(id); err != nil {
					return err
				}
			}
			if len(useMerge) > 0 {
				client := mergesvc.New(a.cfg.MergeService.Endpoint, a.cfg.MergeService.CredentialEnv)
				for _, id := range useMerge {
					sections := res.Sections()
					if id < 0 || id >= len(sections) {
						return fmt.Errorf("no conflict section with id %d", id)
					}
					merged, err := client.Merge(cmd.Context(), sections[id].LocalText, sections[id].RemoteText)
					if err != nil {
						color.Red("section %d: merge service failed: %v", id, err)
						continue
					}
					if err := res.Resolve(id, merged); err != nil {
						return err
					}
				}
			}

			if res.IsComplete() {
				if err := res.Finalize(cmd.Context()); err != nil {
					return err
				}
				color.Green("all sections resolved; file staged for commit")
				return nil
			}

			color.Yellow("unresolved sections remain:")
			for _, sec := range res.Sections() {
				if sec.Resolved != nil {
					continue
				}
				fmt.Printf("--- section %d ---\n", sec.ID)
				fmt.Printf("local:\n%s\n", indent(sec.LocalText))
				fmt.Printf("remote:\n%s\n", indent(sec.RemoteText))
			}
			return nil
		},
	}
	resolveCmd.Flags().IntSliceVar(&keepLocal, "local", nil, "section ids to resolve with the local side")
	resolveCmd.Flags().IntSliceVar(&keepRemote, "remote", nil, "section ids to resolve with the remote side")
	resolveCmd.Flags().IntSliceVar(&keepBoth, "both", nil, "section ids to resolve with both sides")
	resolveCmd.Flags().IntSliceVar(&useMerge, "merge", nil, "section ids to resolve via the merge service")
	resolveCmd.Flags().BoolVar(&abortResolve, "abort", false, "abandon the resolution and restore the working copy")

	var diffRef string
	var diffCmd = &cobra.Command{
		Use:   "diff <file>",
		Short: "Show pending changes for a tracked file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			hunks, err := a.backend.Diff(cmd.Context(), diffRef, args[0])
			if err != nil {
				return err
			}
			if len(hunks) == 0 {
				color.Green("no changes")
				return nil
			}
			for _, h := range hunks {
				color.Cyan("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
				for _, line := range h.Lines {
					switch line.Type {
					case diffview.Addition:
						color.Green("+%s", line.Content)
					case diffview.Deletion:
						color.Red("-%s", line.Content)
					default:
						fmt.Printf(" %s\n", line.Content)
					}
				}
			}
			stats := diffview.Tally(hunks)
			fmt.Printf("%d additions, %d deletions\n", stats.Additions, stats.Deletions)
			return nil
		},
	}
	diffCmd.Flags().StringVar(&diffRef, "ref", "", "ref to diff against (default: working tree vs index)")

	var historyLimit int
	var logCmd = &cobra.Command{
		Use:   "log [file]",
		Short: "Show the sync journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if a.snapshots == nil {
				return fmt.Errorf("snapshots are disabled; set snapshot_dir in the config")
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			entries, err := a.snapshots.History(path, historyLimit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-16s %-8s %s",
					e.At.Format("2006-01-02 15:04:05"), e.Op, e.Outcome, e.Path)
				if e.Outcome == "failure" {
					color.Red("%s", line)
				} else {
					fmt.Println(line)
				}
			}
			return nil
		},
	}
	logCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show")

	var watchCmd = &cobra.Command{
		Use:   "watch <file>",
		Short: "Watch a tracked file and poll the remote until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.open(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			watcher, err := syncer.NewWatcher(s.AbsPath(), 500*time.Millisecond, a.logger.WithPath(s.Path()))
			if err != nil {
				return err
			}
			defer watcher.Close()

			poller := syncer.NewPoller(s, a.cfg.PollInterval(), func(st *gitback.Status) {
				if st.BehindCount > 0 {
					color.Yellow("%s: remote is %d commit(s) ahead", s.Path(), st.BehindCount)
				}
			}, a.logger.WithPath(s.Path()))

			go watcher.Start(ctx)
			go poller.Start(ctx)

			color.Green("watching %s (poll every %s); Ctrl-C to stop", s.Path(), a.cfg.PollInterval())
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-watcher.Events():
					s.MarkDirty()
					a.logger.WithPath(s.Path()).Info("local edit detected")
				}
			}
		},
	}

	rootCmd.AddCommand(statusCmd, pullCmd, pushCmd, commitCmd, resolveCmd, diffCmd, logCmd, watchCmd)
}

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}
