// Package memory keeps repository state in process. It backs the job tests
// and local runs without Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

// Database holds every table behind one lock. Reads return copies.
type Database struct {
	mu       sync.RWMutex
	accounts map[int64]models.SocialAccount
	posts    map[int64]models.Post
	metrics  []models.Metric
	attempts []models.PublishAttempt
	writes   map[int64]int
	nextID   int64
	now      func() time.Time
}

func NewDatabase() *Database {
	return &Database{
		accounts: make(map[int64]models.SocialAccount),
		posts:    make(map[int64]models.Post),
		writes:   make(map[int64]int),
		now:      time.Now,
	}
}

func (db *Database) id() int64 {
	db.nextID++
	return db.nextID
}

// PutAccount stores a copy of acc, assigning an id when it has none.
func (db *Database) PutAccount(acc models.SocialAccount) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()

	if acc.ID == 0 {
		acc.ID = db.id()
	} else if acc.ID > db.nextID {
		db.nextID = acc.ID
	}
	if acc.Status == "" {
		acc.Status = models.AccountStatusActive
	}
	db.accounts[acc.ID] = acc
	return acc.ID
}

func (db *Database) PutPost(p models.Post) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()

	if p.ID == 0 {
		p.ID = db.id()
	} else if p.ID > db.nextID {
		db.nextID = p.ID
	}
	if p.Status == "" {
		p.Status = models.PostStatusDraft
	}
	db.posts[p.ID] = p
	return p.ID
}

func (db *Database) Account(id int64) (models.SocialAccount, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	acc, ok := db.accounts[id]
	return acc, ok
}

func (db *Database) Post(id int64) (models.Post, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.posts[id]
	return p, ok
}

// AccountWrites counts mutations applied to an account row.
func (db *Database) AccountWrites(id int64) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.writes[id]
}

func (db *Database) Metrics() []models.Metric {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]models.Metric(nil), db.metrics...)
}

func (db *Database) Attempts(postID int64) []models.PublishAttempt {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []models.PublishAttempt
	for _, a := range db.attempts {
		if a.PostID == postID {
			out = append(out, a)
		}
	}
	return out
}

func (db *Database) Accounts() repository.SocialAccountRepository { return accountStore{db} }
func (db *Database) Posts() repository.PostRepository             { return postStore{db} }
func (db *Database) MetricStore() repository.MetricRepository     { return metricStore{db} }
func (db *Database) AttemptStore() repository.PublishAttemptRepository {
	return attemptStore{db}
}

type accountStore struct{ db *Database }

func (s accountStore) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	acc, ok := s.db.Account(id)
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (s accountStore) ListActive(ctx context.Context) ([]*models.SocialAccount, error) {
	return s.filter(func(a models.SocialAccount) bool {
		return a.Status == models.AccountStatusActive
	}), nil
}

func (s accountStore) ListRefreshCandidates(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	return s.filter(func(a models.SocialAccount) bool {
		return a.Status == models.AccountStatusActive && a.TokenExpiresAt != nil && !a.TokenExpiresAt.After(before)
	}), nil
}

func (s accountStore) filter(keep func(models.SocialAccount) bool) []*models.SocialAccount {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var out []*models.SocialAccount
	for _, acc := range s.db.accounts {
		if keep(acc) {
			acc := acc
			out = append(out, &acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s accountStore) update(id int64, op string, fn func(*models.SocialAccount)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	acc, ok := s.db.accounts[id]
	if !ok {
		return fmt.Errorf("%s: account %d not found", op, id)
	}
	fn(&acc)
	acc.UpdatedAt = s.db.now()
	s.db.accounts[id] = acc
	s.db.writes[id]++
	return nil
}

func (s accountStore) UpdateToken(ctx context.Context, id int64, token *models.AccountToken) error {
	return s.update(id, "update token", func(acc *models.SocialAccount) {
		acc.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			acc.RefreshToken = token.RefreshToken
		}
		acc.TokenExpiresAt = token.ExpiresAt
	})
}

func (s accountStore) SetStatus(ctx context.Context, id int64, status models.AccountStatus) error {
	return s.update(id, "set status", func(acc *models.SocialAccount) {
		acc.Status = status
	})
}

func (s accountStore) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	return s.update(id, "mark synced", func(acc *models.SocialAccount) {
		acc.LastSyncedAt = &at
	})
}

type postStore struct{ db *Database }

func (s postStore) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	p, ok := s.db.Post(id)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s postStore) BeginProcessing(ctx context.Context, id int64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.posts[id]
	if !ok || !p.Status.CanTransition(models.PostStatusProcessing) {
		return false, nil
	}
	p.Status = models.PostStatusProcessing
	p.UpdatedAt = s.db.now()
	s.db.posts[id] = p
	return true, nil
}

func (s postStore) finish(id int64, fn func(*models.Post)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.posts[id]
	if !ok || p.Status != models.PostStatusProcessing {
		return fmt.Errorf("update post %d: %w", id, repository.ErrStaleTransition)
	}
	fn(&p)
	if err := p.CheckInvariant(); err != nil {
		return err
	}
	p.UpdatedAt = s.db.now()
	s.db.posts[id] = p
	return nil
}

func (s postStore) MarkPublished(ctx context.Context, id int64, outcome models.PublishOutcome) error {
	return s.finish(id, func(p *models.Post) {
		at := outcome.PublishedAt
		p.Status = models.PostStatusPublished
		p.PlatformPostID = outcome.PlatformPostID
		p.VideoURL = outcome.VideoURL
		p.PublishedAt = &at
		p.FailureReason = ""
	})
}

func (s postStore) MarkFailed(ctx context.Context, id int64, reason string) error {
	return s.finish(id, func(p *models.Post) {
		p.Status = models.PostStatusFailed
		p.FailureReason = reason
	})
}

type metricStore struct{ db *Database }

func (s metricStore) Create(ctx context.Context, m *models.Metric) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	row := *m
	row.ID = s.db.id()
	row.CreatedAt = s.db.now()
	s.db.metrics = append(s.db.metrics, row)
	return row.ID, nil
}

type attemptStore struct{ db *Database }

func (s attemptStore) Create(ctx context.Context, a *models.PublishAttempt) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	row := *a
	row.ID = s.db.id()
	row.CreatedAt = s.db.now()
	s.db.attempts = append(s.db.attempts, row)
	return row.ID, nil
}

func (s attemptStore) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	var out []*models.PublishAttempt
	for _, a := range s.db.Attempts(postID) {
		a := a
		out = append(out, &a)
	}
	return out, nil
}
