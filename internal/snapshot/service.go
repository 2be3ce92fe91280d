// Package snapshot persists the workspace entity graph. Each snapshot
// is committed into a local git repository, which gives the persistence
// layer a free audit trail: every saved state is a commit, the latest
// state is HEAD, and history is browsable with stock git tooling.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"huddle/api/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const stateFile = "state.json"

type CommitInfo struct {
	Hash    string
	Message string
	When    time.Time
}

type Service struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Service {
	return &Service{dir: dir}
}

// Save serializes the snapshot and commits it. The first save
// initializes the repository.
func (s *Service) Save(snap store.Snapshot, message string) (CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.ensureRepo()
	if err != nil {
		return CommitInfo{}, err
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return CommitInfo{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, stateFile), append(payload, '\n'), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write snapshot: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	if _, err := worktree.Add(stateFile); err != nil {
		return CommitInfo{}, fmt.Errorf("git add snapshot: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		// Nothing changed since the last save; reuse the HEAD commit.
		head, headErr := repo.Head()
		if headErr != nil {
			return CommitInfo{}, fmt.Errorf("read head: %w", headErr)
		}
		commitObj, objErr := repo.CommitObject(head.Hash())
		if objErr != nil {
			return CommitInfo{}, fmt.Errorf("read commit object: %w", objErr)
		}
		return toCommitInfo(commitObj), nil
	}

	if message == "" {
		message = "Workspace snapshot"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "huddle",
			Email: "huddle@local.huddle.dev",
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// Load reads the snapshot at HEAD. The second return is false when no
// snapshot has ever been saved.
func (s *Service) Load() (store.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return store.Snapshot{}, false, nil
	}
	if err != nil {
		return store.Snapshot{}, false, fmt.Errorf("open snapshot repo: %w", err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return store.Snapshot{}, false, nil
	}
	if err != nil {
		return store.Snapshot{}, false, fmt.Errorf("read head: %w", err)
	}

	commitObj, err := repo.CommitObject(head.Hash())
	if err != nil {
		return store.Snapshot{}, false, fmt.Errorf("read commit object: %w", err)
	}
	file, err := commitObj.File(stateFile)
	if err != nil {
		return store.Snapshot{}, false, fmt.Errorf("read snapshot file: %w", err)
	}
	contents, err := file.Contents()
	if err != nil {
		return store.Snapshot{}, false, fmt.Errorf("read snapshot contents: %w", err)
	}

	var snap store.Snapshot
	if err := json.Unmarshal([]byte(contents), &snap); err != nil {
		return store.Snapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// History lists the most recent snapshot commits, newest first.
func (s *Service) History(limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot repo: %w", err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var commits []CommitInfo
	for {
		commitObj, iterErr := iter.Next()
		if iterErr != nil {
			break
		}
		commits = append(commits, toCommitInfo(commitObj))
		if limit > 0 && len(commits) >= limit {
			break
		}
	}
	return commits, nil
}

func (s *Service) ensureRepo() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open snapshot repo: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init snapshot repo: %w", err)
	}
	return repo, nil
}

func toCommitInfo(c *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:    c.Hash.String(),
		Message: c.Message,
		When:    c.Author.When,
	}
}
