package formatter

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mersinvald/rustyrobot/pkg/log"
)

// Git drives the git command line inside one working tree.
type Git struct {
	dir    string
	logger zerolog.Logger
}

// CommandError reports a git invocation that exited non-zero.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("executing %q failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Clone clones url into path and returns a Git over the resulting tree.
func Clone(path, url string) (*Git, error) {
	cmd := exec.Command("git", "clone", url, path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &CommandError{
			Command: "git clone " + url,
			Output:  string(output),
			Err:     err,
		}
	}
	return Open(path), nil
}

// Open wraps an existing working tree.
func Open(path string) *Git {
	return &Git{
		dir:    path,
		logger: log.WithComponent("git"),
	}
}

func (g *Git) run(args ...string) error {
	_, err := g.output(args...)
	return err
}

func (g *Git) output(args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &CommandError{
			Command: "git " + strings.Join(args, " "),
			Output:  string(output),
			Err:     err,
		}
	}
	g.logger.Debug().Str("args", strings.Join(args, " ")).Msg("git")
	return output, nil
}

// Remotes lists the configured remote names.
func (g *Git) Remotes() ([]string, error) {
	output, err := g.output("remote")
	if err != nil {
		return nil, err
	}
	var remotes []string
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			remotes = append(remotes, line)
		}
	}
	return remotes, nil
}

// HasRemote reports whether a remote with the name is configured.
func (g *Git) HasRemote(name string) (bool, error) {
	remotes, err := g.Remotes()
	if err != nil {
		return false, err
	}
	for _, remote := range remotes {
		if remote == name {
			return true, nil
		}
	}
	return false, nil
}

// AddRemote configures a remote.
func (g *Git) AddRemote(name, url string) error {
	return g.run("remote", "add", name, url)
}

// Checkout switches to branch, creating it when create is set.
func (g *Git) Checkout(branch string, create bool) error {
	if create {
		return g.run("checkout", "-b", branch)
	}
	return g.run("checkout", branch)
}

// Reset moves HEAD to target; hard discards the working tree.
func (g *Git) Reset(target string, hard bool) error {
	if hard {
		return g.run("reset", "--hard", target)
	}
	return g.run("reset", target)
}

// Branches lists local branch names.
func (g *Git) Branches() ([]string, error) {
	output, err := g.output("branch", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	var branches []string
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

// HasBranch reports whether a local branch with the name exists.
func (g *Git) HasBranch(name string) (bool, error) {
	branches, err := g.Branches()
	if err != nil {
		return false, err
	}
	for _, branch := range branches {
		if branch == name {
			return true, nil
		}
	}
	return false, nil
}

// Fetch fetches a remote.
func (g *Git) Fetch(remote string) error {
	return g.run("fetch", remote)
}

// Merge merges target into the current branch.
func (g *Git) Merge(target string) error {
	return g.run("merge", target)
}

// CommitAll stages and commits every change in the tree.
func (g *Git) CommitAll(message string) error {
	if err := g.run("add", "-A"); err != nil {
		return err
	}
	return g.run("commit", "-m", message)
}

// Push pushes target to origin.
func (g *Git) Push(target string) error {
	return g.run("push", "origin", target)
}

// DiffStat summarizes the diff between two revisions.
type DiffStat struct {
	FilesChanged uint64
	LinesAdded   uint64
	LinesRemoved uint64
}

// DiffStat measures target (a revision range like "HEAD~1..HEAD").
func (g *Git) DiffStat(target string) (DiffStat, error) {
	output, err := g.output("diff", "--shortstat", target)
	if err != nil {
		return DiffStat{}, err
	}
	line := strings.TrimSpace(string(output))
	if line == "" {
		return DiffStat{}, nil
	}
	return parseShortstat(line)
}

// parseShortstat reads lines like
// " 1 file changed, 2 insertions(+), 1 deletion(-)".
func parseShortstat(line string) (DiffStat, error) {
	var stat DiffStat
	for _, part := range strings.Split(line, ",") {
		fields := strings.Fields(part)
		if len(fields) < 2 {
			continue
		}
		value, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return DiffStat{}, fmt.Errorf("unexpected shortstat segment %q", part)
		}
		switch {
		case strings.Contains(part, "file"):
			stat.FilesChanged = value
		case strings.Contains(part, "insertion"):
			stat.LinesAdded = value
		case strings.Contains(part, "deletion"):
			stat.LinesRemoved = value
		}
	}
	return stat, nil
}
