// Package mirror creates and refreshes bare mirror clones of repositories and gists.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/utilitywarehouse/gh-mirror/internal/utils"
	"github.com/utilitywarehouse/gh-mirror/pkg/giturl"
	"github.com/utilitywarehouse/gh-mirror/pkg/github"
)

const (
	ReposDir = "repos"
	GistsDir = "gists"
)

// Config is shared by all the mirror tasks of a run
type Config struct {
	// Root is the dir where 'repos' and 'gists' dirs are created
	Root string
	// Timeout is the total time allowed for a single mirror, 0 means no limit
	Timeout time.Duration
	// DryRun only logs the git commands which would be executed
	DryRun bool
	// Envs are passed to all git commands
	Envs []string
	// Auth is used for https remotes only
	Auth Auth
}

// Task mirrors a single repository or gist into
// <root>/repos/<name>.git or <root>/gists/<id>.git
// It implements dispatch.Task
type Task struct {
	desc    github.Descriptor
	root    string
	timeout time.Duration
	dryRun  bool
	envs    []string
	auth    Auth
	log     *slog.Logger
	run     utils.CommandRunner
}

// NewTask validates descriptor and returns task which will mirror it.
func NewTask(desc github.Descriptor, conf Config, log *slog.Logger) (*Task, error) {
	if desc.Kind != github.KindRepo && desc.Kind != github.KindGist {
		return nil, fmt.Errorf("unknown descriptor kind '%s'", desc.Kind)
	}

	if desc.Name == "" || strings.ContainsAny(desc.Name, `/\`) || desc.Name == "." || desc.Name == ".." {
		return nil, fmt.Errorf("invalid %s name '%s'", desc.Kind, desc.Name)
	}

	if _, err := giturl.Parse(desc.CloneURL); err != nil {
		return nil, err
	}

	if conf.Root == "" {
		return nil, fmt.Errorf("mirror root cannot be empty")
	}

	root, err := filepath.Abs(conf.Root)
	if err != nil {
		return nil, fmt.Errorf("unable to convert given root '%s' to abs path err:%w", conf.Root, err)
	}

	if log == nil {
		log = slog.Default()
	}

	return &Task{
		desc:    desc,
		root:    root,
		timeout: conf.Timeout,
		dryRun:  conf.DryRun,
		envs:    conf.Envs,
		auth:    conf.Auth,
		log:     log.With(string(desc.Kind), desc.Name),
		run:     utils.RunCommand,
	}, nil
}

func (t *Task) String() string {
	return t.desc.String()
}

// KindDir returns abs path of the dir holding mirrors of the task's kind
func (t *Task) KindDir() string {
	if t.desc.Kind == github.KindGist {
		return filepath.Join(t.root, GistsDir)
	}
	return filepath.Join(t.root, ReposDir)
}

// Directory returns abs path of the bare mirror
func (t *Task) Directory() string {
	return filepath.Join(t.KindDir(), t.desc.Name+".git")
}

// Execute creates the mirror if it doesn't exist, otherwise it updates all
// refs of the existing mirror from the remote. A directory which is not a
// bare mirror of the clone URL is replaced by a fresh mirror clone.
func (t *Task) Execute(ctx context.Context) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()

	if err := utils.EnsureDir(t.KindDir()); err != nil {
		return err
	}

	if t.dryRun {
		t.log.Info("dry run", "cmd", utils.GitExecutablePath+" clone --mirror "+t.desc.CloneURL+" "+t.Directory())
		return nil
	}

	envs, err := t.gitEnvs(ctx)
	if err != nil {
		return err
	}

	action := "cloned"

	_, err = os.Stat(t.Directory())
	switch {
	case os.IsNotExist(err):
		err = t.clone(ctx, envs)
	case err != nil:
		return fmt.Errorf("unable to stat mirror dir err:%w", err)
	default:
		var usable bool
		usable, err = t.usableMirror(ctx, envs)
		if err != nil {
			return fmt.Errorf("unable to check existing mirror dir err:%w", err)
		}
		if usable {
			action = "updated"
			err = t.update(ctx, envs)
			break
		}
		if err := os.RemoveAll(t.Directory()); err != nil {
			return fmt.Errorf("can't delete unusable dir: %w", err)
		}
		err = t.clone(ctx, envs)
	}
	if err != nil {
		return err
	}

	t.log.Info(fmt.Sprintf("%s %s %s", action, t.desc.Kind, t.desc.Name), "time", time.Since(start))
	return nil
}

// git clone --mirror <url> <dir>
func (t *Task) clone(ctx context.Context, envs []string) error {
	_, err := t.run(ctx, t.log, envs, t.KindDir(), utils.GitExecutablePath,
		"clone", "--mirror", t.desc.CloneURL, t.Directory())
	if err != nil {
		// partial clone must not be mistaken for a mirror on next run
		os.RemoveAll(t.Directory())
		return err
	}
	return nil
}

// usableMirror returns true if existing target dir is a bare mirror of the
// descriptor's clone URL
func (t *Task) usableMirror(ctx context.Context, envs []string) (bool, error) {
	bare, err := utils.IsBareRepo(ctx, t.run, t.log, envs, t.Directory())
	if err != nil {
		return false, err
	}
	if !bare {
		t.log.Info("existing dir is not a bare repository, re-creating it", "path", t.Directory())
		return false, nil
	}
	if !t.sameOrigin(ctx, envs) {
		t.log.Info("existing mirror has different remote url, re-creating it", "path", t.Directory())
		return false, nil
	}
	return true, nil
}

// sameOrigin returns true if origin of the existing mirror is the clone URL
// of the descriptor.
// git config --get remote.origin.url
func (t *Task) sameOrigin(ctx context.Context, envs []string) bool {
	origin, err := t.run(ctx, t.log, envs, t.Directory(), utils.GitExecutablePath,
		"config", "--get", "remote.origin.url")
	if err != nil {
		t.log.Error("can't get repo config remote.origin.url", "path", t.Directory(), "err", err)
		return false
	}

	same, err := giturl.SameRawURL(origin, t.desc.CloneURL)
	if err != nil {
		t.log.Error("unable to compare remote url", "remote.origin.url", origin, "err", err)
		return false
	}
	if !same {
		t.log.Debug("repo configured with diff remote url", "remote.origin.url", origin, "want", t.desc.CloneURL)
	}
	return same
}

// git remote update --prune
func (t *Task) update(ctx context.Context, envs []string) error {
	_, err := t.run(ctx, t.log, envs, t.Directory(), utils.GitExecutablePath,
		"remote", "update", "--prune")
	return err
}
