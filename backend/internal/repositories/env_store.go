package repositories

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/joho/godotenv"
)

// TokenKey is the .env key the bearer token is stored under.
const TokenKey = "REMAPP_BEARER_TOKEN"

// EnvStore persists values into a dotenv file.
type EnvStore struct {
	mu   sync.Mutex
	path string
}

// NewEnvStore returns a store for the dotenv file at path.
func NewEnvStore(path string) *EnvStore {
	return &EnvStore{path: path}
}

// SaveToken writes the bearer token, keeping every other key in the file.
func (s *EnvStore) SaveToken(token string) error {
	return s.Set(TokenKey, token)
}

// Set adds or replaces one key.
func (s *EnvStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := godotenv.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		values = map[string]string{}
	} else if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}

	values[key] = value
	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Get returns the value stored for key.
func (s *EnvStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := godotenv.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", s.path, err)
	}
	v, ok := values[key]
	return v, ok, nil
}
