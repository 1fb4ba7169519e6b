package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"github.com/utilitywarehouse/gh-mirror/internal/utils"
	"github.com/utilitywarehouse/gh-mirror/pkg/auth"
	"github.com/utilitywarehouse/gh-mirror/pkg/dispatch"
	"github.com/utilitywarehouse/gh-mirror/pkg/github"
	"github.com/utilitywarehouse/gh-mirror/pkg/mirror"
)

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"trace": slog.Level(-8),
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
)

func appFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Value:   "info",
			Usage:   "Log level (trace, debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:    "config",
			Sources: cli.EnvVars("GH_MIRROR_CONFIG"),
			Usage:   "Absolute path to the optional config file.",
		},
		&cli.IntFlag{
			Name:  "workers",
			Value: defaultWorkers,
			Usage: "Number of concurrent mirrors.",
		},
		&cli.DurationFlag{
			Name:  "mirror-timeout",
			Value: defaultMirrorTimeout,
			Usage: "Total time allowed for a single mirror.",
		},
		&cli.StringFlag{
			Name:  "api-url",
			Value: defaultAPIURL,
			Usage: "GitHub API URL.",
		},
		&cli.StringFlag{
			Name:    "token",
			Sources: cli.EnvVars("GITHUB_TOKEN"),
			Usage:   "GitHub token used for API requests and https clones.",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Only log git commands without running them.",
		},
		&cli.BoolFlag{
			Name:  "prune",
			Usage: "Remove mirrors of repos and gists which no longer exist on remote.",
		},
		&cli.StringFlag{
			Name:  "metrics-textfile",
			Usage: "Write prometheus metrics to given file for node exporter textfile collector.",
		},
	}
}

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loggerLevel,
	}))
}

func main() {
	cmd := &cli.Command{
		Name:      "gh-mirror",
		Usage:     "gh-mirror mirrors all repositories and gists of a GitHub user locally.",
		ArgsUsage: "<username> [dir]",
		Flags:     appFlags(),
		Action:    run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("failed to run app", "err", err)
		os.Exit(1)
	}
}

// run lists all repos and gists of the user and mirrors them. Failure of an
// individual mirror is logged and doesn't change the exit code.
func run(ctx context.Context, c *cli.Command) error {
	// set log level according to argument
	level := strings.ToLower(c.String("log-level"))
	v, ok := levelStrings[level]
	if !ok {
		return fmt.Errorf("invalid log level '%s', valid levels are %s", level, strings.Join(slices.Sorted(maps.Keys(levelStrings)), ", "))
	}
	loggerLevel.Set(v)

	username := c.Args().Get(0)
	if username == "" {
		return fmt.Errorf("username argument is required")
	}

	dir := c.Args().Get(1)
	if dir == "" {
		dir = "."
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("unable to convert given dir '%s' to abs path err:%w", dir, err)
	}

	conf, err := loadConfig(c)
	if err != nil {
		return err
	}

	client := github.New(githubConfig(conf), logger.With("logger", "github"))

	all, err := github.Collect(client.Descriptors(ctx, username))
	if err != nil {
		return err
	}
	descs := filterDescriptors(all, conf)

	// path to resolve git helpers
	gitENV := []string{fmt.Sprintf("PATH=%s", os.Getenv("PATH"))}
	if home := os.Getenv("HOME"); home != "" {
		gitENV = append(gitENV, fmt.Sprintf("HOME=%s", home))
	}

	mirrorConf := mirror.Config{
		Root:    root,
		Timeout: conf.MirrorTimeout,
		DryRun:  c.Bool("dry-run"),
		Envs:    gitENV,
	}

	token, err := client.Token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		credsDir, err := os.MkdirTemp("", "gh-mirror")
		if err != nil {
			return err
		}
		defer os.RemoveAll(credsDir)

		askPass, err := mirror.WriteCredsLoader(credsDir)
		if err != nil {
			return fmt.Errorf("unable to write load creds script file err:%w", err)
		}
		// app tokens expire mid run, resolve it per mirror
		mirrorConf.Auth = mirror.Auth{Username: "x-access-token", Token: client.Token, AskPassPath: askPass}
	}

	tasks := buildTasks(descs, mirrorConf, logger.With("logger", "mirror"))

	logger.Info(fmt.Sprintf("about to mirror %d repos for user '%s'", len(tasks), username), "workers", conf.Workers, "root", root)

	registry := prometheus.NewRegistry()
	dispatch.EnableMetrics("gh_mirror", registry)

	d, err := dispatch.New(logger.With("logger", "dispatch"), conf.Workers)
	if err != nil {
		return err
	}
	summary := d.Run(ctx, tasks)

	logger.Info(fmt.Sprintf("done mirroring %d repos for user '%s'", summary.Total, username),
		"succeeded", summary.Succeeded, "failed", summary.Failed, "time", summary.Duration)

	if c.Bool("prune") {
		cleanupOrphanedMirrors(ctx, logger.With("logger", "cleanup"), utils.RunCommand, gitENV, root, all, c.Bool("dry-run"))
	}

	if path := c.String("metrics-textfile"); path != "" {
		if err := prometheus.WriteToTextfile(path, registry); err != nil {
			logger.Error("unable to write metrics textfile", "path", path, "err", err)
		}
	}

	return nil
}

func githubConfig(conf *Config) github.Config {
	gc := github.Config{
		APIURL: conf.APIURL,
		Token:  conf.Auth.Token,
	}
	if conf.Auth.GithubAppID != "" {
		gc.App = &auth.GithubApp{
			AppID:          conf.Auth.GithubAppID,
			InstallationID: conf.Auth.GithubAppInstallationID,
			PrivateKeyPath: conf.Auth.GithubAppPrivateKeyPath,
			APIURL:         conf.APIURL,
		}
	}
	return gc
}

func filterDescriptors(descs []github.Descriptor, conf *Config) []github.Descriptor {
	var filtered []github.Descriptor
	for _, d := range descs {
		if d.Kind == github.KindRepo && conf.SkipRepos {
			continue
		}
		if d.Kind == github.KindGist && conf.SkipGists {
			continue
		}
		filtered = append(filtered, d)
	}
	return filtered
}

// buildTasks creates mirror task for each descriptor, invalid descriptors
// are logged and skipped
func buildTasks(descs []github.Descriptor, conf mirror.Config, log *slog.Logger) []dispatch.Task {
	var tasks []dispatch.Task
	for _, d := range descs {
		t, err := mirror.NewTask(d, conf, log)
		if err != nil {
			log.Error("skipping invalid descriptor", "descriptor", d.String(), "err", err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks
}
