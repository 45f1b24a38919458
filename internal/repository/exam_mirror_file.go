package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileExamMirror stores every snapshot as <dir>/<key>.json. Writes go to a
// temporary file first and are renamed into place, so a crash never leaves
// a truncated snapshot behind.
type FileExamMirror struct {
	dir string
}

// NewFileExamMirror creates the directory if needed.
func NewFileExamMirror(dir string) (*FileExamMirror, error) {
	if dir == "" {
		dir = "./.exam-mirror"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create mirror dir: %w", err)
	}
	return &FileExamMirror{dir: dir}, nil
}

func (f *FileExamMirror) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid mirror key %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *FileExamMirror) Load(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMirrorMiss
	}
	return payload, err
}

func (f *FileExamMirror) Store(_ context.Context, key string, payload []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (f *FileExamMirror) Remove(_ context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
