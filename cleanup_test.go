package main

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/utilitywarehouse/gh-mirror/internal/utils"
	"github.com/utilitywarehouse/gh-mirror/pkg/github"
)

func Test_cleanupOrphanedMirrors(t *testing.T) {
	root := t.TempDir()

	dirs := map[string]bool{
		"repos/r1.git":       true,
		"repos/old.git":      true,
		"repos/notes":        false,
		"gists/g1.git":       true,
		"gists/gone.git":     true,
		"gists/r1.git":       true,
		"repos/worktree.git": false,
	}
	bare := map[string]bool{}
	for d, isBare := range dirs {
		p := filepath.Join(root, d)
		if err := os.MkdirAll(p, 0755); err != nil {
			t.Fatalf("unexpected err:%s", err)
		}
		bare[p] = isBare
	}
	if err := os.WriteFile(filepath.Join(root, "repos", "README"), nil, 0644); err != nil {
		t.Fatalf("unexpected err:%s", err)
	}

	// plain dir inside a bare repo reports git dir of its parent
	nested := filepath.Join(root, "repos", "nested")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("unexpected err:%s", err)
	}

	run := func(ctx context.Context, log *slog.Logger, envs []string, cwd string, command string, args ...string) (string, error) {
		if cwd == nested {
			if args[len(args)-1] == "--absolute-git-dir" {
				return root, nil
			}
			return "true", nil
		}
		if args[len(args)-1] == "--absolute-git-dir" {
			return cwd, nil
		}
		if bare[cwd] {
			return "true", nil
		}
		return "false", nil
	}

	descs := []github.Descriptor{
		{Kind: github.KindRepo, CloneURL: "https://example/u/r1.git", Name: "r1"},
		{Kind: github.KindGist, CloneURL: "https://example/g1.git", Name: "g1"},
	}

	// dry run doesn't remove anything
	if got := cleanupOrphanedMirrors(t.Context(), slog.Default(), run, nil, root, descs, true); got != nil {
		t.Errorf("expected nothing removed in dry run got %v", got)
	}

	got := cleanupOrphanedMirrors(t.Context(), slog.Default(), run, nil, root, descs, false)
	slices.Sort(got)

	want := []string{
		filepath.Join(root, "gists", "gone.git"),
		filepath.Join(root, "gists", "r1.git"),
		filepath.Join(root, "repos", "old.git"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cleanupOrphanedMirrors() mismatch (-want +got):\n%s", diff)
	}

	for _, keep := range []string{"repos/r1.git", "repos/notes", "repos/nested", "gists/g1.git", "repos/worktree.git", "repos/README"} {
		if _, err := os.Stat(filepath.Join(root, keep)); err != nil {
			t.Errorf("expected %s to be kept err:%v", keep, err)
		}
	}
}

func Test_cleanupOrphanedMirrors_RootInsideBareRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found")
	}

	tmp := t.TempDir()
	envs := []string{"PATH=" + os.Getenv("PATH"), "HOME=" + tmp}

	backup := filepath.Join(tmp, "backup.git")
	if _, err := utils.RunCommand(t.Context(), slog.Default(), envs, "", utils.GitExecutablePath, "init", "-q", "--bare", backup); err != nil {
		t.Fatalf("unexpected err:%s", err)
	}

	root := filepath.Join(backup, "mirror")
	important := filepath.Join(root, "repos", "notes", "important.txt")
	if err := os.MkdirAll(filepath.Dir(important), 0755); err != nil {
		t.Fatalf("unexpected err:%s", err)
	}
	if err := os.WriteFile(important, []byte("keep"), 0644); err != nil {
		t.Fatalf("unexpected err:%s", err)
	}

	if got := cleanupOrphanedMirrors(t.Context(), slog.Default(), utils.RunCommand, envs, root, nil, false); got != nil {
		t.Errorf("expected nothing removed got %v", got)
	}
	if _, err := os.Stat(important); err != nil {
		t.Errorf("expected %s to be kept err:%v", important, err)
	}
}

func Test_cleanupOrphanedMirrors_MissingDirs(t *testing.T) {
	run := func(ctx context.Context, log *slog.Logger, envs []string, cwd string, command string, args ...string) (string, error) {
		t.Errorf("unexpected command in %s", cwd)
		return "", nil
	}

	if got := cleanupOrphanedMirrors(t.Context(), slog.Default(), run, nil, t.TempDir(), nil, false); got != nil {
		t.Errorf("expected nothing removed got %v", got)
	}
}
