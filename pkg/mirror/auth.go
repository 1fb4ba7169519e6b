package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/utilitywarehouse/gh-mirror/pkg/giturl"
)

const loadCredsScript = `#!/bin/sh

case "$1" in
  Username*) echo "$REPO_USERNAME" ;;
  Password*) echo "$REPO_PASSWORD" ;;
esac
`

// Auth holds credentials for https remotes. Credentials are passed to git
// via GIT_ASKPASS script so they never appear on the command line.
type Auth struct {
	Username string
	Password string
	// Token is called before each mirror to get the current password, it
	// takes precedence over Password. Used for short lived tokens.
	Token func(ctx context.Context) (string, error)
	// AskPassPath is the path of the script created by WriteCredsLoader
	AskPassPath string
}

// WriteCredsLoader writes GIT_ASKPASS script into dir and returns its path.
// It should be called once before tasks are executed.
func WriteCredsLoader(dir string) (string, error) {
	credsLoader := filepath.Join(dir, ".gh-mirror-creds-loader.sh")

	_, err := os.Stat(credsLoader)
	switch {
	case os.IsNotExist(err):
		if err := os.WriteFile(credsLoader, []byte(loadCredsScript), 0750); err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("unable to check if script file exits err:%w", err)
	}

	return credsLoader, nil
}

// gitEnvs returns envs for git commands of the task
func (t *Task) gitEnvs(ctx context.Context) ([]string, error) {
	// never wait on terminal for credentials of private or missing remotes
	envs := append([]string{"GIT_TERMINAL_PROMPT=0"}, t.envs...)

	if !giturl.IsHTTPSURL(t.desc.CloneURL) {
		return envs, nil
	}

	password := t.auth.Password
	if t.auth.Token != nil {
		var err error
		if password, err = t.auth.Token(ctx); err != nil {
			return nil, fmt.Errorf("unable to get token err:%w", err)
		}
	}
	if password == "" {
		return envs, nil
	}

	if t.auth.AskPassPath == "" {
		return nil, fmt.Errorf("credentials loader script path is not set")
	}

	username := t.auth.Username
	if username == "" {
		username = "-" // username is required
	}

	envs = append(envs, fmt.Sprintf(`GIT_ASKPASS=%s`, t.auth.AskPassPath))
	envs = append(envs, fmt.Sprintf(`REPO_USERNAME=%s`, username))
	envs = append(envs, fmt.Sprintf(`REPO_PASSWORD=%s`, password))

	return envs, nil
}
