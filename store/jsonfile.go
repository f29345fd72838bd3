package store

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// DefaultFilename backs the JSON file store when no filename is configured
const DefaultFilename = "store.json"

// JSONFile persists the store as a single JSON document on disk. Top level
// names map to raw values, hash names map to nested objects. Access is
// serialised, the whole document is rewritten on every mutation.
type JSONFile struct {
	mu       sync.Mutex
	filename string
}

// NewJSONFile returns a JSON file backend at filename
func NewJSONFile(filename string) (*JSONFile, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	return &JSONFile{filename: filename}, nil
}

// Name implements Backend
func (f *JSONFile) Name() string {
	return "JSON file " + f.filename
}

// Close implements Backend
func (f *JSONFile) Close() error {
	return nil
}

func (f *JSONFile) read() (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(f.filename)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read store file")
	}
	data := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "parse store file")
	}
	return data, nil
}

func (f *JSONFile) write(data map[string]json.RawMessage) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encode store file")
	}
	return errors.Wrap(os.WriteFile(f.filename, raw, 0o600), "write store file")
}

// Get implements Backend
func (f *JSONFile) Get(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return "", err
	}
	value, ok := data[name]
	if !ok {
		return "", ErrNotFound
	}
	return decodeValue(value)
}

// Set implements Backend
func (f *JSONFile) Set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	data[name] = encodeValue(value)
	return f.write(data)
}

// Delete implements Backend
func (f *JSONFile) Delete(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := data[name]; !ok {
		return ErrNotFound
	}
	delete(data, name)
	return f.write(data)
}

// HGet implements Backend
func (f *JSONFile) HGet(name, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return "", err
	}
	hash, err := decodeHash(data[name])
	if err != nil {
		return "", err
	}
	value, ok := hash[key]
	if !ok {
		return "", ErrNotFound
	}
	return decodeValue(value)
}

// HSet implements Backend
func (f *JSONFile) HSet(name, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	hash, err := decodeHash(data[name])
	if err != nil {
		return err
	}
	hash[key] = encodeValue(value)
	raw, err := json.Marshal(hash)
	if err != nil {
		return errors.Wrap(err, "encode hash")
	}
	data[name] = raw
	return f.write(data)
}

// HDel implements Backend
func (f *JSONFile) HDel(name, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.read()
	if err != nil {
		return err
	}
	hash, err := decodeHash(data[name])
	if err != nil {
		return err
	}
	if _, ok := hash[key]; !ok {
		return ErrNotFound
	}
	delete(hash, key)
	raw, err := json.Marshal(hash)
	if err != nil {
		return errors.Wrap(err, "encode hash")
	}
	data[name] = raw
	return f.write(data)
}

// encodeValue stores strings as JSON strings so the file stays valid JSON
func encodeValue(value string) json.RawMessage {
	raw, _ := json.Marshal(value)
	return raw
}

func decodeValue(raw json.RawMessage) (string, error) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", errors.Wrap(err, "decode value")
	}
	return value, nil
}

// decodeHash parses a name entry as a hash, a missing entry yields an empty
// hash so writes can create it
func decodeHash(raw json.RawMessage) (map[string]json.RawMessage, error) {
	if raw == nil {
		return map[string]json.RawMessage{}, nil
	}
	hash := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &hash); err != nil {
		return nil, errors.Wrap(err, "decode hash")
	}
	return hash, nil
}
