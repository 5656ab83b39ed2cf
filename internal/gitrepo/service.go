// Package gitrepo keeps the revision history of content cards. Each card has
// its own repository holding a single card.json file on the main branch.
package gitrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const contentFile = "card.json"

// ErrNotFound is returned for cards without history or unknown revisions.
var ErrNotFound = errors.New("revision not found")

type Content struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Tags    []int64 `json:"tags"`
}

type Revision struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[int64]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[int64]*sync.Mutex),
	}
}

// Record commits content as the newest revision of the card, creating the
// repository on first use. Content identical to the head revision is not
// committed again; the head revision is returned instead.
func (s *Service) Record(cardID int64, content Content, author, message string) (Revision, error) {
	lock := s.cardLock(cardID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(cardID)
	if err != nil {
		return Revision{}, err
	}

	if head, err := repo.Head(); err == nil {
		commitObj, err := repo.CommitObject(head.Hash())
		if err != nil {
			return Revision{}, fmt.Errorf("load head commit: %w", err)
		}
		current, err := readContentFromCommit(commitObj)
		if err != nil {
			return Revision{}, err
		}
		if !HasChanges(current, content) {
			return toRevision(commitObj), nil
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Revision{}, fmt.Errorf("resolve head: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Revision{}, fmt.Errorf("open worktree: %w", err)
	}
	payload, err := json.MarshalIndent(normalizeContent(content), "", "  ")
	if err != nil {
		return Revision{}, fmt.Errorf("marshal content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), contentFile), append(payload, '\n'), 0o644); err != nil {
		return Revision{}, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return Revision{}, fmt.Errorf("git add content: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@users.symposium.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return Revision{}, fmt.Errorf("commit content: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Revision{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj), nil
}

// History lists revisions newest first. A card that was never recorded has
// an empty history.
func (s *Service) History(cardID int64, limit int) ([]Revision, error) {
	lock := s.cardLock(cardID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(cardID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Revision, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevision(commitObj))
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

// Get returns the card content at a revision. hash may be abbreviated.
func (s *Service) Get(cardID int64, hash string) (Content, Revision, error) {
	lock := s.cardLock(cardID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(cardID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Content{}, Revision{}, ErrNotFound
	}
	if err != nil {
		return Content{}, Revision{}, fmt.Errorf("open repo: %w", err)
	}

	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return Content{}, Revision{}, fmt.Errorf("resolve %s: %w", hash, ErrNotFound)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return Content{}, Revision{}, fmt.Errorf("read commit %s: %w", hash, ErrNotFound)
	}
	content, err := readContentFromCommit(commitObj)
	if err != nil {
		return Content{}, Revision{}, err
	}
	return content, toRevision(commitObj), nil
}

// Remove deletes the card's history.
func (s *Service) Remove(cardID int64) error {
	lock := s.cardLock(cardID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(s.repoPath(cardID)); err != nil {
		return fmt.Errorf("remove repo: %w", err)
	}
	return nil
}

func (s *Service) openOrInit(cardID int64) (*git.Repository, error) {
	path := s.repoPath(cardID)
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
	repo, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(cardID int64) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("card-%d", cardID))
}

func (s *Service) cardLock(cardID int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[cardID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[cardID] = lock
	return lock
}

func readContentFromCommit(commitObj *object.Commit) (Content, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return Content{}, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Content{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Content{}, fmt.Errorf("read content bytes: %w", err)
	}

	var content Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return Content{}, fmt.Errorf("decode commit content: %w", err)
	}
	return normalizeContent(content), nil
}

// FieldChange describes one field that differs between two revisions.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

func DiffFields(from, to Content) []FieldChange {
	result := make([]FieldChange, 0, 3)
	if from.Content != to.Content {
		result = append(result, FieldChange{Field: "content", Before: from.Content, After: to.Content})
	}
	from, to = normalizeContent(from), normalizeContent(to)
	if !slices.Equal(from.Tags, to.Tags) {
		result = append(result, FieldChange{Field: "tags", Before: fmt.Sprint(from.Tags), After: fmt.Sprint(to.Tags)})
	}
	if from.Title != to.Title {
		result = append(result, FieldChange{Field: "title", Before: from.Title, After: to.Title})
	}
	return result
}

func HasChanges(from, to Content) bool {
	return len(DiffFields(from, to)) > 0
}

// normalizeContent sorts tag ids so that tag order never produces a revision.
func normalizeContent(c Content) Content {
	tags := slices.Clone(c.Tags)
	if tags == nil {
		tags = []int64{}
	}
	slices.Sort(tags)
	c.Tags = tags
	return c
}

func toRevision(commitObj *object.Commit) Revision {
	return Revision{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' || r == '.' || r == '@' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
