// Package drafts versions generated document text in one git repository per matter.
package drafts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var ErrVersionNotFound = errors.New("draft version not found")

// Version is one commit touching a document.
type Version struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Commit writes content as the next version of the document, creating the
// matter repository on first use.
func (s *Service) Commit(matterID, documentID, content, author, message string) (Version, error) {
	lock := s.matterLock(matterID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepo(matterID)
	if err != nil {
		return Version{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return Version{}, fmt.Errorf("open worktree: %w", err)
	}

	name := documentFile(documentID)
	path := filepath.Join(worktree.Filesystem.Root(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Version{}, fmt.Errorf("create documents dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Version{}, fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := worktree.Add(name); err != nil {
		return Version{}, fmt.Errorf("git add %s: %w", name, err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            s.signature(author),
	})
	if err != nil {
		return Version{}, fmt.Errorf("commit draft: %w", err)
	}
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return Version{}, fmt.Errorf("read commit object: %w", err)
	}
	return toVersion(commit), nil
}

// Read returns the document text at hash, or at the latest commit when hash is empty.
func (s *Service) Read(matterID, documentID, hash string) (string, error) {
	lock := s.matterLock(matterID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(matterID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", ErrVersionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}

	var commitHash plumbing.Hash
	if hash == "" {
		ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
		if err != nil {
			return "", fmt.Errorf("resolve main: %w", err)
		}
		commitHash = ref.Hash()
	} else {
		resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
		if err != nil {
			return "", ErrVersionNotFound
		}
		commitHash = *resolved
	}

	commit, err := repo.CommitObject(commitHash)
	if err != nil {
		return "", ErrVersionNotFound
	}
	file, err := commit.File(documentFile(documentID))
	if errors.Is(err, object.ErrFileNotFound) {
		return "", ErrVersionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load draft from commit: %w", err)
	}
	return file.Contents()
}

// History lists the versions of one document, newest first.
func (s *Service) History(matterID, documentID string, limit int) ([]Version, error) {
	lock := s.matterLock(matterID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(matterID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Version{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}

	name := documentFile(documentID)
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash(), FileName: &name})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Version, 0)
	err = iter.ForEach(func(commit *object.Commit) error {
		items = append(items, toVersion(commit))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

func (s *Service) ensureRepo(matterID string) (*git.Repository, error) {
	path := s.repoPath(matterID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	readme := fmt.Sprintf("Drafts for matter %s\n", matterID)
	if err := os.WriteFile(filepath.Join(path, "README.md"), []byte(readme), 0o644); err != nil {
		return nil, fmt.Errorf("write readme: %w", err)
	}
	if _, err := worktree.Add("README.md"); err != nil {
		return nil, fmt.Errorf("git add readme: %w", err)
	}
	hash, err := worktree.Commit("Initialize matter drafts", &git.CommitOptions{Author: s.signature("Lexdesk")})
	if err != nil {
		return nil, fmt.Errorf("commit baseline: %w", err)
	}

	main := plumbing.NewBranchReferenceName("main")
	if err := repo.Storer.SetReference(plumbing.NewHashReference(main, hash)); err != nil {
		return nil, fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, main)); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (s *Service) signature(author string) *object.Signature {
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@drafts.lexdesk.local", sanitizeEmail(author)),
		When:  s.now(),
	}
}

func (s *Service) repoPath(matterID string) string {
	return filepath.Join(s.baseDir, filepath.Base(matterID))
}

func (s *Service) matterLock(matterID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[matterID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[matterID] = lock
	}
	return lock
}

func documentFile(documentID string) string {
	return "documents/" + filepath.Base(documentID) + ".md"
}

func toVersion(commit *object.Commit) Version {
	return Version{
		Hash:      commit.Hash.String(),
		Message:   commit.Message,
		Author:    commit.Author.Name,
		CreatedAt: commit.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
