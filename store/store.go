// Package store persists namespaced key/value state for bots across runs.
// Values are stored as strings, the JSON helpers layer structured state on
// top. A value lives either directly under a name or under a key inside the
// name's hash, mirroring the flat/hash split of the settings file backends.
package store

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/rob-Hitchens/trading-bots/config"
	"github.com/rob-Hitchens/trading-bots/log"
)

// ErrNotFound is reported when a name or key holds no value
var ErrNotFound = errors.New("store: not found")

// ErrUnknownBackend is reported by Open for an unrecognised storage name
var ErrUnknownBackend = errors.New("store: unknown backend")

// Backend is the persistence contract the Store wraps
type Backend interface {
	// Name identifies the backend in logs
	Name() string
	Get(name string) (string, error)
	Set(name, value string) error
	Delete(name string) error
	HGet(name, key string) (string, error)
	HSet(name, key, value string) error
	HDel(name, key string) error
	Close() error
}

// Store decorates a backend with logging and JSON serialization
type Store struct {
	backend Backend
	logger  *log.SubLogger
}

// New returns a store over the backend. A nil logger falls back to the
// storage subsystem logger.
func New(backend Backend, logger *log.SubLogger) *Store {
	if logger == nil {
		logger = log.StoreSys
	}
	return &Store{backend: backend, logger: logger}
}

// Open builds a store from the storage settings block
func Open(cfg config.Storage) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Name {
	case "json", "":
		backend, err = NewJSONFile(cfg.Filename)
	case "sqlite3":
		backend, err = OpenSQLite(cfg.Filename)
	case "postgres":
		backend, err = OpenPostgres(cfg.URL)
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", cfg.Name)
	}
	if err != nil {
		return nil, err
	}
	return New(backend, nil), nil
}

// Close releases the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

// Get returns the value stored under name
func (s *Store) Get(name string) (string, error) {
	log.Debugf(s.logger, "Get %s from %s", name, s.backend.Name())
	value, err := s.backend.Get(name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warnf(s.logger, "%s not found on %s", name, s.backend.Name())
			return "", err
		}
		return "", errors.Wrapf(err, "get %s from %s", name, s.backend.Name())
	}
	return value, nil
}

// Set stores value under name
func (s *Store) Set(name, value string) error {
	log.Debugf(s.logger, "Set %s on %s", name, s.backend.Name())
	if err := s.backend.Set(name, value); err != nil {
		return errors.Wrapf(err, "set %s on %s", name, s.backend.Name())
	}
	return nil
}

// Delete removes name and everything under it
func (s *Store) Delete(name string) error {
	log.Debugf(s.logger, "Delete %s from %s", name, s.backend.Name())
	err := s.backend.Delete(name)
	if errors.Is(err, ErrNotFound) {
		log.Warnf(s.logger, "%s not found on %s", name, s.backend.Name())
		return nil
	}
	return errors.Wrapf(err, "delete %s from %s", name, s.backend.Name())
}

// HGet returns the value stored under key inside name's hash
func (s *Store) HGet(name, key string) (string, error) {
	log.Debugf(s.logger, "Get %s %s from %s", name, key, s.backend.Name())
	value, err := s.backend.HGet(name, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warnf(s.logger, "%s %s not found on %s", name, key, s.backend.Name())
			return "", err
		}
		return "", errors.Wrapf(err, "get %s %s from %s", name, key, s.backend.Name())
	}
	return value, nil
}

// HSet stores value under key inside name's hash
func (s *Store) HSet(name, key, value string) error {
	log.Debugf(s.logger, "Set %s %s on %s", name, key, s.backend.Name())
	if err := s.backend.HSet(name, key, value); err != nil {
		return errors.Wrapf(err, "set %s %s on %s", name, key, s.backend.Name())
	}
	return nil
}

// HDel removes key from name's hash
func (s *Store) HDel(name, key string) error {
	log.Debugf(s.logger, "Delete %s %s from %s", name, key, s.backend.Name())
	err := s.backend.HDel(name, key)
	if errors.Is(err, ErrNotFound) {
		log.Warnf(s.logger, "%s %s not found on %s", name, key, s.backend.Name())
		return nil
	}
	return errors.Wrapf(err, "delete %s %s from %s", name, key, s.backend.Name())
}

// GetJSON decodes the value stored under name into out
func (s *Store) GetJSON(name string, out any) error {
	value, err := s.Get(name)
	if err != nil {
		return err
	}
	return errors.Wrapf(json.Unmarshal([]byte(value), out), "decode %s", name)
}

// SetJSON encodes v and stores it under name
func (s *Store) SetJSON(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}
	return s.Set(name, string(raw))
}

// HGetJSON decodes the value stored under key inside name's hash into out
func (s *Store) HGetJSON(name, key string, out any) error {
	value, err := s.HGet(name, key)
	if err != nil {
		return err
	}
	return errors.Wrapf(json.Unmarshal([]byte(value), out), "decode %s %s", name, key)
}

// HSetJSON encodes v and stores it under key inside name's hash
func (s *Store) HSetJSON(name, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s %s", name, key)
	}
	return s.HSet(name, key, string(raw))
}
