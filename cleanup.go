package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/utilitywarehouse/gh-mirror/internal/utils"
	"github.com/utilitywarehouse/gh-mirror/pkg/github"
	"github.com/utilitywarehouse/gh-mirror/pkg/mirror"
)

// cleanupOrphanedMirrors deletes mirrors from the repos and gists dirs of the
// root which no longer belong to any of the listed descriptors, ie repos
// which were deleted or renamed on remote.
// since only bare repositories are created, any other dir or file is left as is.
// it must only be called with complete listing of descriptors.
func cleanupOrphanedMirrors(ctx context.Context, log *slog.Logger, run utils.CommandRunner, envs []string, root string, descs []github.Descriptor, dryRun bool) []string {
	expected := map[string]bool{}
	for _, d := range descs {
		kindDir := mirror.ReposDir
		if d.Kind == github.KindGist {
			kindDir = mirror.GistsDir
		}
		expected[filepath.Join(kindDir, d.Name+".git")] = true
	}

	var removed []string

	for _, kindDir := range []string{mirror.ReposDir, mirror.GistsDir} {
		entries, err := os.ReadDir(filepath.Join(root, kindDir))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			log.Error("unable to read dir for clean up", "path", filepath.Join(root, kindDir), "err", err)
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() || expected[filepath.Join(kindDir, entry.Name())] {
				continue
			}

			fullPath := filepath.Join(root, kindDir, entry.Name())

			ok, err := utils.IsBareRepo(ctx, run, log, envs, fullPath)
			if err != nil {
				log.Error("unable to check if bare repo", "path", fullPath, "err", err)
				continue
			}

			if !ok {
				continue
			}

			if dryRun {
				log.Info("dry run, orphaned mirror not removed", "path", fullPath)
				continue
			}

			log.Info("removing orphaned mirror...", "path", fullPath)
			if err := os.RemoveAll(fullPath); err != nil {
				log.Error("unable to remove orphaned mirror", "path", fullPath, "err", err)
				continue
			}
			removed = append(removed, fullPath)
		}
	}

	return removed
}
