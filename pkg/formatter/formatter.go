// Package formatter checks out forked repositories, runs the external code
// formatter across their sub-projects, and pushes the result to a working
// branch.
package formatter

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mersinvald/rustyrobot/pkg/kafka"
	"github.com/mersinvald/rustyrobot/pkg/log"
	"github.com/mersinvald/rustyrobot/pkg/types"
)

// WorkingBranch is the branch the formatting commit lands on.
const WorkingBranch = "rustyrobot_suggested_formatting"

const commitMessage = "rustyrobot formatting"

// Handle is the formatter stage handler: forked repositories come in,
// formatted repositories with format stats go out.
func Handle(event types.Event, emit func(types.Event)) error {
	repo := event.RepositoryForked
	if repo == nil {
		return nil
	}

	formatted, err := formatRepo(*repo)
	if err != nil {
		return err
	}

	emit(types.Event{RepositoryFormatted: formatted})
	return nil
}

// Wants pre-filters the event stream down to the variant the stage handles.
func Wants(event types.Event) bool {
	return event.RepositoryForked != nil
}

func formatRepo(repo types.Repository) (*types.Repository, error) {
	if repo.Parent == nil {
		return nil, kafka.Otherf("repository %s has no parent, refusing to format a non-fork", repo.NameWithOwner)
	}

	logger := log.WithRepo(repo.NameWithOwner)

	dir, err := os.MkdirTemp("", strings.ReplaceAll(repo.NameWithOwner, "/", "_"))
	if err != nil {
		return nil, kafka.Internal(err)
	}
	defer os.RemoveAll(dir)

	logger.Debug().Msg("cloning repo")
	git, err := Clone(dir, repo.SSHURL)
	if err != nil {
		return nil, kafka.Internal(err)
	}
	logger.Info().Msg("cloned repo")

	defaultBranch := repo.DefaultBranch.Name
	if err := git.Checkout(defaultBranch, false); err != nil {
		return nil, kafka.Internal(err)
	}

	// Sync the fork with its upstream before touching anything.
	hasUpstream, err := git.HasRemote("upstream")
	if err != nil {
		return nil, kafka.Internal(err)
	}
	if !hasUpstream {
		if err := git.AddRemote("upstream", repo.Parent.SSHURL); err != nil {
			return nil, kafka.Internal(err)
		}
	}
	if err := git.Fetch("upstream"); err != nil {
		return nil, kafka.Internal(err)
	}
	if err := git.Merge("upstream/" + defaultBranch); err != nil {
		return nil, kafka.Internal(err)
	}
	if err := git.Push(defaultBranch); err != nil {
		return nil, kafka.Internal(err)
	}
	logger.Info().Str("upstream", repo.Parent.NameWithOwner).Msg("synced fork with upstream")

	// A leftover working branch means a previous round already committed:
	// drop that commit and fold in the current default branch.
	hasBranch, err := git.HasBranch(WorkingBranch)
	if err != nil {
		return nil, kafka.Internal(err)
	}
	if hasBranch {
		logger.Info().Str("branch", WorkingBranch).Msg("branch already exists, reverting previous change and merging")
		if err := git.Checkout(WorkingBranch, false); err != nil {
			return nil, kafka.Internal(err)
		}
		if err := git.Reset("HEAD~1", true); err != nil {
			return nil, kafka.Internal(err)
		}
		if err := git.Merge(defaultBranch); err != nil {
			return nil, kafka.Internal(err)
		}
	} else {
		logger.Info().Str("branch", WorkingBranch).Msg("creating branch")
		if err := git.Checkout(WorkingBranch, true); err != nil {
			return nil, kafka.Internal(err)
		}
	}

	logger.Info().Msg("executing rustfmt")
	if err := formatTree(dir); err != nil {
		return nil, err
	}

	if err := git.CommitAll(commitMessage); err != nil {
		return nil, kafka.Internal(err)
	}

	stat, err := git.DiffStat("HEAD~1..HEAD")
	if err != nil {
		return nil, kafka.Internal(err)
	}
	logger.Info().
		Uint64("files_changed", stat.FilesChanged).
		Uint64("lines_added", stat.LinesAdded).
		Uint64("lines_removed", stat.LinesRemoved).
		Msg("formatting committed")

	if err := git.Push(WorkingBranch); err != nil {
		return nil, kafka.Internal(err)
	}
	logger.Info().Msg("pushed changes")

	if repo.Stats == nil {
		repo.Stats = &types.Stats{}
	}
	repo.Stats.Format = &types.FormatStats{
		FilesChanged: stat.FilesChanged,
		LinesAdded:   stat.LinesAdded,
		LinesRemoved: stat.LinesRemoved,
		Branch:       WorkingBranch,
	}

	return &repo, nil
}

// formatTree runs the formatter in every discovered sub-project.
func formatTree(root string) error {
	projects, err := discoverProjects(root)
	if err != nil {
		return kafka.Internal(err)
	}

	for _, project := range projects {
		cmd := exec.Command("cargo", "fmt")
		cmd.Dir = project
		output, err := cmd.CombinedOutput()
		if err != nil {
			return kafka.Otherf("failed to format %s: %v: %s", project, err, output)
		}
	}
	return nil
}

// discoverProjects finds the directories holding a project manifest,
// skipping nested target/ and .git/ trees.
func discoverProjects(root string) ([]string, error) {
	var projects []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			switch entry.Name() {
			case ".git", "target":
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Name() == "Cargo.toml" {
			projects = append(projects, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover sub-projects: %w", err)
	}
	return projects, nil
}
