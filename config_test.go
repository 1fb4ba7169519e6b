package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/urfave/cli/v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("unable to write config: %v", err)
	}
	return path
}

func Test_parseConfigFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    *Config
		wantErr bool
	}{
		{
			name: "valid",
			content: `
workers: 8
mirror_timeout: 2m
api_url: https://github.example.com/api/v3
skip_gists: true
auth:
  github_app_id: "42"
  github_app_installation_id: "99"
  github_app_private_key_path: /etc/gh-mirror/app.pem
`,
			want: &Config{
				Workers:       8,
				MirrorTimeout: 2 * time.Minute,
				APIURL:        "https://github.example.com/api/v3",
				SkipGists:     true,
				Auth: Auth{
					GithubAppID:             "42",
					GithubAppInstallationID: "99",
					GithubAppPrivateKeyPath: "/etc/gh-mirror/app.pem",
				},
			},
		},
		{
			name:    "empty",
			content: ``,
			want:    &Config{},
		},
		{
			name:    "unexpected-key",
			content: "workers: 8\nthreads: 4\n",
			wantErr: true,
		},
		{
			name:    "unexpected-auth-key",
			content: "auth:\n  password: secret\n",
			wantErr: true,
		},
		{
			name:    "invalid-auth-section",
			content: "auth: token\n",
			wantErr: true,
		},
		{
			name:    "invalid-yaml",
			content: "workers: [",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseConfigFile(writeConfig(t, tt.content))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseConfigFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseConfigFile() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfig_validate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		applyDefaults(c)
		return c
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative-workers", func(c *Config) { c.Workers = -1 }, true},
		{"short-timeout", func(c *Config) { c.MirrorTimeout = time.Millisecond }, true},
		{"skip-all", func(c *Config) { c.SkipGists, c.SkipRepos = true, true }, true},
		{"partial-app", func(c *Config) { c.Auth.GithubAppID = "42" }, true},
		{"full-app", func(c *Config) {
			c.Auth = Auth{GithubAppID: "42", GithubAppInstallationID: "99", GithubAppPrivateKeyPath: "/key"}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			if err := c.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// runWithArgs runs command with the app flags and returns loaded config
func runWithArgs(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	var conf *Config
	var loadErr error
	cmd := &cli.Command{
		Name:  "gh-mirror",
		Flags: appFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			conf, loadErr = loadConfig(c)
			return nil
		},
	}
	if err := cmd.Run(t.Context(), append([]string{"gh-mirror"}, args...)); err != nil {
		t.Fatalf("unexpected err:%s", err)
	}
	return conf, loadErr
}

func Test_loadConfig(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_MIRROR_CONFIG", "")

	path := writeConfig(t, "workers: 8\nmirror_timeout: 5m\nauth:\n  token: file-token\n")

	tests := []struct {
		name    string
		args    []string
		want    *Config
		wantErr bool
	}{
		{
			name: "defaults",
			args: []string{"alice"},
			want: &Config{Workers: 4, MirrorTimeout: 10 * time.Minute, APIURL: "https://api.github.com"},
		},
		{
			name: "file",
			args: []string{"--config", path, "alice"},
			want: &Config{Workers: 8, MirrorTimeout: 5 * time.Minute, APIURL: "https://api.github.com", Auth: Auth{Token: "file-token"}},
		},
		{
			name: "flags-override-file",
			args: []string{"--config", path, "--workers", "2", "--token", "flag-token", "--api-url", "https://ghe/api/v3", "alice"},
			want: &Config{Workers: 2, MirrorTimeout: 5 * time.Minute, APIURL: "https://ghe/api/v3", Auth: Auth{Token: "flag-token"}},
		},
		{
			name:    "invalid-workers",
			args:    []string{"--workers=-2", "alice"},
			wantErr: true,
		},
		{
			name:    "missing-file",
			args:    []string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "alice"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runWithArgs(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("loadConfig() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
