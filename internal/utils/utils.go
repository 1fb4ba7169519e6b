package utils

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const DefaultDirMode fs.FileMode = os.FileMode(0755) // 'rwxr-xr-x'

// GitExecutablePath is resolved once from PATH
var GitExecutablePath = exec.Command("git").String()

// CommandRunner runs given command and returns its trimmed stdout
type CommandRunner func(ctx context.Context, log *slog.Logger, envs []string, cwd string, command string, args ...string) (string, error)

// EnsureDir creates dir and all its parents if missing
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, DefaultDirMode); err != nil {
		return fmt.Errorf("unable to create dir '%s' err:%w", path, err)
	}
	return nil
}

// IsBareRepo returns true if given dir is the top level dir of a bare
// repository. A plain dir nested inside a bare repository is not one.
func IsBareRepo(ctx context.Context, run CommandRunner, log *slog.Logger, envs []string, dir string) (bool, error) {
	// err is expected here for non git dirs
	output, _ := run(ctx, log, envs, dir, GitExecutablePath, "rev-parse", "--is-inside-git-dir")
	if output != "true" {
		return false, nil
	}

	output, err := run(ctx, log, envs, dir, GitExecutablePath, "rev-parse", "--is-bare-repository")
	if err != nil {
		return false, err
	}
	if bare, err := strconv.ParseBool(output); err != nil || !bare {
		return false, err
	}

	// Check that this is actually the root of the repo.
	// git rev-parse --absolute-git-dir
	root, err := run(ctx, log, envs, dir, GitExecutablePath, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return false, err
	}
	if root == filepath.Clean(dir) {
		return true, nil
	}
	// git reports the resolved path
	if resolved, err := filepath.EvalSymlinks(dir); err == nil && resolved == root {
		return true, nil
	}

	log.Debug("dir is under another repo", "path", dir, "parent", root)
	return false, nil
}

// RunCommand runs given command with given arguments on given CWD
func RunCommand(ctx context.Context, log *slog.Logger, envs []string, cwd string, command string, args ...string) (string, error) {

	cmdStr := command + " " + strings.Join(args, " ")
	log.Log(ctx, -8, "running command", "cwd", cwd, "cmd", cmdStr)

	cmd := exec.CommandContext(ctx, command, args...)
	// force kill git & child process 5 seconds after sending it sigterm (when ctx is cancelled/timed out)
	cmd.WaitDelay = 5 * time.Second
	if cwd != "" {
		cmd.Dir = cwd
	}
	outbuf := bytes.NewBuffer(nil)
	errbuf := bytes.NewBuffer(nil)
	cmd.Stdout = outbuf
	cmd.Stderr = errbuf

	// If Env is nil, the new process uses the current process's environment.
	cmd.Env = []string{}

	if len(envs) > 0 {
		cmd.Env = append(cmd.Env, envs...)
	}

	start := time.Now()
	err := cmd.Run()
	runTime := time.Since(start)

	stdout := strings.TrimSpace(outbuf.String())
	stderr := strings.TrimSpace(errbuf.String())
	if ctx.Err() == context.DeadlineExceeded {
		err = ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("Run(%s): err:%w { stdout: %q, stderr: %q }", cmdStr, err, stdout, stderr)
	}
	log.Log(ctx, -8, "command result", "stdout", stdout, "stderr", stderr, "time", runTime)

	return stdout, nil
}
