package twofa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tendant/simple-auth/pkg/credential"
)

// FileChallengeRepository persists challenges to twofa_challenges.json in
// dataDir so pending logins survive a restart of a single-node deployment.
// With a TTL set, challenges older than the TTL are treated as missing.
type FileChallengeRepository struct {
	dataDir    string
	challenges map[string]Challenge // keyed by email
	ttl        time.Duration
	now        func() time.Time
	mutex      sync.RWMutex
}

// NewFileChallengeRepository creates a new file-based challenge repository.
// A zero ttl keeps challenges until they are used or replaced.
func NewFileChallengeRepository(dataDir string, ttl time.Duration) (*FileChallengeRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileChallengeRepository{
		dataDir:    dataDir,
		challenges: make(map[string]Challenge),
		ttl:        ttl,
		now:        time.Now,
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// WithClock overrides the clock used for created_at and expiry.
func (r *FileChallengeRepository) WithClock(now func() time.Time) *FileChallengeRepository {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *FileChallengeRepository) AddCode(ctx context.Context, email credential.Email, attemptID LoginAttemptID, code TwoFACode) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := email.String()
	previous, hadPrevious := r.challenges[key]
	r.challenges[key] = Challenge{
		Email:          key,
		LoginAttemptID: attemptID.String(),
		Code:           code.String(),
		CreatedAt:      r.now().UTC(),
	}

	if err := r.save(); err != nil {
		// Rollback
		if hadPrevious {
			r.challenges[key] = previous
		} else {
			delete(r.challenges, key)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileChallengeRepository) GetCode(ctx context.Context, email credential.Email) (LoginAttemptID, TwoFACode, error) {
	key := email.String()

	r.mutex.RLock()
	c, ok := r.challenges[key]
	r.mutex.RUnlock()

	if !ok {
		return LoginAttemptID{}, TwoFACode{}, ErrLoginAttemptIDNotFound
	}
	if r.expired(c) {
		r.dropExpired(key)
		return LoginAttemptID{}, TwoFACode{}, ErrLoginAttemptIDNotFound
	}
	return LoginAttemptID{value: c.LoginAttemptID}, TwoFACode{value: c.Code}, nil
}

func (r *FileChallengeRepository) RemoveCode(ctx context.Context, email credential.Email) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := email.String()
	previous, ok := r.challenges[key]
	if !ok {
		return nil
	}
	delete(r.challenges, key)

	if err := r.save(); err != nil {
		r.challenges[key] = previous
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileChallengeRepository) expired(c Challenge) bool {
	return r.ttl > 0 && r.now().Sub(c.CreatedAt) >= r.ttl
}

// dropExpired removes key if it is still expired. A failed save keeps the
// entry in memory; it stays unreadable because it is expired.
func (r *FileChallengeRepository) dropExpired(key string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cur, ok := r.challenges[key]
	if !ok || !r.expired(cur) {
		return
	}
	delete(r.challenges, key)
	if err := r.save(); err != nil {
		r.challenges[key] = cur
		slog.Warn("Failed to drop expired 2FA challenge", "email", key, "err", err)
	}
}

func (r *FileChallengeRepository) filePath() string {
	return filepath.Join(r.dataDir, "twofa_challenges.json")
}

// load reads challenge data from file
func (r *FileChallengeRepository) load() error {
	data, err := os.ReadFile(r.filePath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var challenges []Challenge
	if err := json.Unmarshal(data, &challenges); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.challenges = make(map[string]Challenge, len(challenges))
	for _, c := range challenges {
		r.challenges[c.Email] = c
	}
	return nil
}

// save writes challenge data to file atomically
func (r *FileChallengeRepository) save() error {
	challenges := make([]Challenge, 0, len(r.challenges))
	for _, c := range r.challenges {
		challenges = append(challenges, c)
	}

	data, err := json.MarshalIndent(challenges, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tmpPath := r.filePath() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, r.filePath()); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
