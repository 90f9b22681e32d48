// Package gitwatch discovers local git repositories and turns new commits
// into commit events on the store.
package gitwatch

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/amberlabs/amber/internal/models"
	"github.com/amberlabs/amber/internal/status"
	"github.com/amberlabs/amber/internal/store"
)

const (
	debounceWindow = 2 * time.Second
	commitLogDepth = 20
)

// Config controls repository discovery.
type Config struct {
	WatchPaths []string
	ScanDepth  int

	// PollInterval, when positive, forces a periodic flush of every repo
	// to catch commits made while ref events were missed.
	PollInterval time.Duration
}

// Watcher watches discovered repositories' branch refs and appends commit
// events to today's log as they land.
type Watcher struct {
	cfg     Config
	store   *store.Store
	tracker *status.Tracker
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Watcher.
func New(cfg Config, s *store.Store, tracker *status.Tracker, logger *slog.Logger) *Watcher {
	return &Watcher{cfg: cfg, store: s, tracker: tracker, logger: logger, now: time.Now}
}

// Run watches until ctx is cancelled. Repositories are discovered once at
// startup; ref changes are debounced, then new commits (up to the last seen
// hash per repo) are appended to the store.
func (w *Watcher) Run(ctx context.Context) error {
	repos := DiscoverRepos(w.cfg.WatchPaths, w.cfg.ScanDepth)
	if len(repos) == 0 {
		w.logger.Warn("gitwatch: no repositories under watch paths")
		<-ctx.Done()
		return nil
	}
	w.logger.Info("gitwatch: started", slog.Int("repos", len(repos)))

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	for _, repo := range repos {
		refs := filepath.Join(repo, ".git", "refs", "heads")
		if _, statErr := os.Stat(refs); statErr != nil {
			continue
		}
		if addErr := fsw.Add(refs); addErr != nil {
			w.logger.Warn("gitwatch: watch failed",
				slog.String("path", refs),
				slog.String("error", addErr.Error()))
		}
	}

	w.tracker.SetWatchersRunning(true)
	defer w.tracker.SetWatchersRunning(false)

	lastSeen := make(map[string]string)
	pending := make(map[string]struct{})

	var pollCh <-chan time.Time
	if w.cfg.PollInterval > 0 {
		poll := time.NewTicker(w.cfg.PollInterval)
		defer poll.Stop()
		pollCh = poll.C
	}

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	schedule := func() {
		if debounce == nil {
			debounce = time.NewTimer(debounceWindow)
			debounceCh = debounce.C
		} else {
			debounce.Reset(debounceWindow)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			w.logger.Info("gitwatch: stopped")
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if repo := repoForPath(ev.Name, repos); repo != "" {
				pending[repo] = struct{}{}
				schedule()
			}

		case <-debounceCh:
			for repo := range pending {
				delete(pending, repo)
				w.flushRepo(ctx, repo, lastSeen)
			}

		case <-pollCh:
			for _, repo := range repos {
				pending[repo] = struct{}{}
			}
			schedule()

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("gitwatch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// flushRepo appends commits newer than the repo's last seen hash.
func (w *Watcher) flushRepo(ctx context.Context, repo string, lastSeen map[string]string) {
	commits, err := recentCommits(ctx, repo)
	if err != nil {
		w.logger.Error("gitwatch: git log failed",
			slog.String("repo", repo),
			slog.String("error", err.Error()))
		return
	}
	last := lastSeen[repo]
	appended := 0
	for _, c := range commits {
		if c.Hash == last {
			break
		}
		event := models.RawEvent{
			Source:    "git",
			Timestamp: c.Time,
			Kind:      models.KindCommit,
			Data: map[string]any{
				"repo":    repo,
				"hash":    c.Hash,
				"subject": c.Subject,
				"author":  c.Author,
			},
		}
		date := w.now().Format(models.DateLayout)
		if err := w.store.AppendEvent(date, event); err != nil {
			w.logger.Error("gitwatch: append failed",
				slog.String("repo", repo),
				slog.String("error", err.Error()))
			continue
		}
		appended++
	}
	if len(commits) > 0 {
		lastSeen[repo] = commits[0].Hash
	}
	if appended > 0 {
		w.tracker.AddBuffered(appended)
		w.logger.Info("gitwatch: commits recorded",
			slog.String("repo", filepath.Base(repo)),
			slog.Int("count", appended))
	}
}

// DiscoverRepos walks each watch path to the given depth collecting
// directories that contain a .git directory. Heavy build trees are skipped.
func DiscoverRepos(watchPaths []string, depth int) []string {
	var repos []string
	for _, p := range watchPaths {
		expanded := ExpandTilde(p)
		if info, err := os.Stat(expanded); err != nil || !info.IsDir() {
			continue
		}
		walkForRepos(expanded, depth, &repos)
	}
	return repos
}

func walkForRepos(dir string, depth int, repos *[]string) {
	if depth == 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "node_modules" || name == "target" || name == ".git" {
			continue
		}
		path := filepath.Join(dir, name)
		if info, err := os.Stat(filepath.Join(path, ".git")); err == nil && info.IsDir() {
			*repos = append(*repos, path)
		}
		walkForRepos(path, depth-1, repos)
	}
}

// ExpandTilde resolves a leading ~/ against the home directory.
func ExpandTilde(path string) string {
	if after, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, after)
		}
	}
	return path
}

func repoForPath(path string, repos []string) string {
	for _, repo := range repos {
		if strings.HasPrefix(path, repo+string(os.PathSeparator)) || path == repo {
			return repo
		}
	}
	return ""
}

// Commit is one parsed git log line.
type Commit struct {
	Hash    string
	Subject string
	Author  string
	Time    time.Time
}

// recentCommits reads the newest commits of a repository's checked-out
// branch via git log.
func recentCommits(ctx context.Context, repo string) ([]Commit, error) {
	cmd := exec.CommandContext(ctx, "git", "log", "--format=%H|%s|%an|%aI", "-"+strconv.Itoa(commitLogDepth))
	cmd.Dir = repo
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return ParseCommits(string(out)), nil
}

// ParseCommits parses hash|subject|author|date lines, skipping anything
// that does not split into four fields.
func ParseCommits(out string) []Commit {
	var commits []Commit
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			continue
		}
		t, err := time.Parse(time.RFC3339, parts[3])
		if err != nil {
			t = time.Now()
		}
		commits = append(commits, Commit{
			Hash:    parts[0],
			Subject: parts[1],
			Author:  parts[2],
			Time:    t,
		})
	}
	return commits
}
