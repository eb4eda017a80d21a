package gitlib

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrNotRepository is returned when no repository contains the given path.
var ErrNotRepository = errors.New("not a git repository")

// Repository wraps a libgit2 repository.
type Repository struct {
	repo    *git2go.Repository
	workdir string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, workdir: filepath.Clean(repo.Workdir())}, nil
}

// Discover opens the repository containing path, searching parent directories.
func Discover(path string) (*Repository, error) {
	gitDir, err := git2go.Discover(path, false, nil)
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
		}

		return nil, fmt.Errorf("discover repository: %w", err)
	}

	return OpenRepository(gitDir)
}

// Workdir returns the working directory, or "" for a bare repository.
func (r *Repository) Workdir() string {
	if r.workdir == "." {
		return ""
	}

	return r.workdir
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the HEAD commit, or the zero hash on an unborn branch.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeUnbornBranch) {
			return Hash{}, nil
		}

		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// Untracked lists untracked, non-ignored files below root. Returned paths are
// absolute and expressed under root as given, even when root or the working
// directory is reached through a symlink.
func (r *Repository) Untracked(root string) (map[string]struct{}, error) {
	workdir := r.Workdir()
	if workdir == "" {
		return map[string]struct{}{}, nil
	}

	list, err := r.repo.StatusList(&git2go.StatusOptions{
		Show:  git2go.StatusShowWorkdirOnly,
		Flags: git2go.StatusOptIncludeUntracked | git2go.StatusOptRecurseUntrackedDirs,
	})
	if err != nil {
		return nil, fmt.Errorf("status list: %w", err)
	}
	defer list.Free()

	count, err := list.EntryCount()
	if err != nil {
		return nil, fmt.Errorf("status count: %w", err)
	}

	realRoot := realPath(root)
	realWork := realPath(workdir)
	out := make(map[string]struct{})

	for i := range count {
		entry, entryErr := list.ByIndex(i)
		if entryErr != nil {
			return nil, fmt.Errorf("status entry %d: %w", i, entryErr)
		}

		if entry.Status&git2go.StatusWtNew == 0 {
			continue
		}

		abs := filepath.Join(realWork, filepath.FromSlash(entry.IndexToWorkdir.NewFile.Path))

		rel, relErr := filepath.Rel(realRoot, abs)
		if relErr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}

		out[filepath.Join(root, rel)] = struct{}{}
	}

	return out, nil
}

// Untracked discovers the repository containing root and lists its untracked
// files below root. Outside a repository the set is empty.
func Untracked(root string) (map[string]struct{}, error) {
	repo, err := Discover(root)
	if err != nil {
		if errors.Is(err, ErrNotRepository) {
			return map[string]struct{}{}, nil
		}

		return nil, err
	}
	defer repo.Free()

	return repo.Untracked(root)
}

func realPath(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return filepath.Clean(path)
	}

	return resolved
}
