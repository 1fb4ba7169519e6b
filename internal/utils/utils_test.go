package utils

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	// twice to check existing dir is not an error
	for range 2 {
		if err := EnsureDir(dir); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Errorf("expected %q to be a dir err:%v", dir, err)
	}
}

func TestIsBareRepo(t *testing.T) {
	log := slog.Default()

	tests := []struct {
		name    string
		outputs map[string]string
		fail    map[string]bool
		want    bool
		wantErr bool
	}{
		{"not-git-dir", map[string]string{}, map[string]bool{"--is-inside-git-dir": true}, false, false},
		{"worktree", map[string]string{"--is-inside-git-dir": "false"}, nil, false, false},
		{"bare", map[string]string{"--is-inside-git-dir": "true", "--is-bare-repository": "true", "--absolute-git-dir": "/tmp/x"}, nil, true, false},
		{"not-bare", map[string]string{"--is-inside-git-dir": "true", "--is-bare-repository": "false", "--absolute-git-dir": "/tmp/x"}, nil, false, false},
		{"nested-in-bare-repo", map[string]string{"--is-inside-git-dir": "true", "--is-bare-repository": "true", "--absolute-git-dir": "/tmp"}, nil, false, false},
		{"error", map[string]string{"--is-inside-git-dir": "true"}, map[string]bool{"--is-bare-repository": true}, false, true},
		{"git-dir-error", map[string]string{"--is-inside-git-dir": "true", "--is-bare-repository": "true"}, map[string]bool{"--absolute-git-dir": true}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := func(ctx context.Context, log *slog.Logger, envs []string, cwd string, command string, args ...string) (string, error) {
				last := args[len(args)-1]
				if tt.fail[last] {
					return "", errors.New("exit status 128")
				}
				return tt.outputs[last], nil
			}

			got, err := IsBareRepo(t.Context(), run, log, nil, "/tmp/x")
			if (err != nil) != tt.wantErr {
				t.Fatalf("IsBareRepo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IsBareRepo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsBareRepo_Git(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found")
	}

	log := slog.Default()
	tmp := t.TempDir()
	envs := []string{"PATH=" + os.Getenv("PATH"), "HOME=" + tmp}

	bare := filepath.Join(tmp, "backup.git")
	if _, err := RunCommand(t.Context(), log, envs, "", GitExecutablePath, "init", "-q", "--bare", bare); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nested := filepath.Join(bare, "mirror", "repos", "notes")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ok, err := IsBareRepo(t.Context(), RunCommand, log, envs, bare); err != nil || !ok {
		t.Errorf("IsBareRepo(%s) = %v, %v want true", bare, ok, err)
	}
	if ok, err := IsBareRepo(t.Context(), RunCommand, log, envs, nested); err != nil || ok {
		t.Errorf("IsBareRepo(%s) = %v, %v want false", nested, ok, err)
	}
}

func TestRunCommand(t *testing.T) {
	log := slog.Default()

	out, err := RunCommand(t.Context(), log, nil, t.TempDir(), "/bin/sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("RunCommand() = %q, want hello", out)
	}

	_, err = RunCommand(t.Context(), log, nil, "", "/bin/sh", "-c", "echo oops >&2; exit 3")
	if err == nil {
		t.Fatalf("expected error for non zero exit")
	}
	if !strings.Contains(err.Error(), "oops") {
		t.Errorf("expected stderr in error got %v", err)
	}
}
