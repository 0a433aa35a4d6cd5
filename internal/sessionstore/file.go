package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File persists all slots in one JSON document on disk. Writes go through a
// temporary file and a rename so a crash never leaves a half-written store.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session store dir: %w", err)
	}
	return &File{path: path}, nil
}

func (f *File) Get(_ context.Context, slot Slot) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[slot]
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (f *File) Set(_ context.Context, slot Slot, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("%w: %s is not JSON", ErrCorrupt, slot)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return err
	}
	if doc == nil {
		doc = map[Slot]json.RawMessage{}
	}
	doc[slot] = append(json.RawMessage(nil), value...)
	return f.write(doc)
}

func (f *File) Delete(_ context.Context, slot Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := doc[slot]; !ok {
		return nil
	}
	delete(doc, slot)
	return f.write(doc)
}

func (f *File) read() (map[Slot]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[Slot]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session store: %w", err)
	}

	doc := map[Slot]json.RawMessage{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return doc, nil
}

func (f *File) write(doc map[Slot]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp session store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp session store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp session store: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session store: %w", err)
	}
	return nil
}
