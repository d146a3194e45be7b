package user

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileUserRepository implements Repository using a JSON file in dataDir.
type FileUserRepository struct {
	dataDir string
	users   map[string]User // keyed by email
	mutex   sync.RWMutex
}

// NewFileUserRepository creates a new file-based user repository
func NewFileUserRepository(dataDir string) (*FileUserRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileUserRepository{
		dataDir: dataDir,
		users:   make(map[string]User),
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

func (r *FileUserRepository) CreateUser(ctx context.Context, u User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.users[u.Email]; exists {
		return ErrUserAlreadyExists
	}
	r.users[u.Email] = u

	if err := r.save(); err != nil {
		// Rollback
		delete(r.users, u.Email)
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileUserRepository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	u, ok := r.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *FileUserRepository) filePath() string {
	return filepath.Join(r.dataDir, "users.json")
}

func (r *FileUserRepository) load() error {
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

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	for _, u := range users {
		r.users[u.Email] = u
	}
	return nil
}

// save writes user data to file atomically
func (r *FileUserRepository) save() error {
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}

	data, err := json.MarshalIndent(users, "", "  ")
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
