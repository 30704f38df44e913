package linkstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// File is a Store persisted as one JSON document. Every operation takes an
// exclusive flock, reloads the document, applies the change, and writes it
// back through a temp file and rename.
type File struct {
	path string
	lock *flock.Flock
}

// OpenFile returns a File store at path, creating an empty tree if the file
// does not exist.
func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure link store directory: %w", err)
	}
	f := &File{path: path, lock: flock.New(path + ".lock")}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := f.save(NewMemory()); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat link store: %w", err)
	}
	return f, nil
}

// Path returns the backing file.
func (f *File) Path() string { return f.path }

func (f *File) withLock(ctx context.Context, write bool, fn func(*Memory) error) error {
	locked, err := f.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock link store: %w", err)
	}
	if !locked {
		return errors.New("lock link store: not acquired")
	}
	defer func() { _ = f.lock.Unlock() }()

	mem, err := f.load()
	if err != nil {
		return err
	}
	if err := fn(mem); err != nil {
		return err
	}
	if !write {
		return nil
	}
	return f.save(mem)
}

func (f *File) load() (*Memory, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read link store: %w", err)
	}
	var tree Tree
	if len(data) > 0 {
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("decode link store %s: %w", f.path, err)
		}
	}
	return FromTree(tree), nil
}

func (f *File) save(mem *Memory) error {
	tree, err := mem.Export(context.Background())
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("encode link store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".links-*.json")
	if err != nil {
		return fmt.Errorf("create temp link store: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp link store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp link store: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace link store: %w", err)
	}
	return nil
}

func (f *File) ListAll(ctx context.Context) ([]Item, error) {
	var out []Item
	err := f.withLock(ctx, false, func(m *Memory) error {
		var err error
		out, err = m.ListAll(ctx)
		return err
	})
	return out, err
}

func (f *File) CreateFolder(ctx context.Context, title, parentID string) (string, error) {
	var id string
	err := f.withLock(ctx, true, func(m *Memory) error {
		var err error
		id, err = m.CreateFolder(ctx, title, parentID)
		return err
	})
	return id, err
}

func (f *File) FindChildByTitle(ctx context.Context, title, parentID string) (string, bool, error) {
	var (
		id string
		ok bool
	)
	err := f.withLock(ctx, false, func(m *Memory) error {
		var err error
		id, ok, err = m.FindChildByTitle(ctx, title, parentID)
		return err
	})
	return id, ok, err
}

func (f *File) Move(ctx context.Context, itemID, destFolderID string) error {
	return f.withLock(ctx, true, func(m *Memory) error {
		return m.Move(ctx, itemID, destFolderID)
	})
}

// AddLink stores a new link under parentID.
func (f *File) AddLink(ctx context.Context, title, url, parentID string) (string, error) {
	var id string
	err := f.withLock(ctx, true, func(m *Memory) error {
		var err error
		id, err = m.AddLink(ctx, title, url, parentID)
		return err
	})
	return id, err
}

// Children returns the folders and items directly under folderID.
func (f *File) Children(ctx context.Context, folderID string) ([]Folder, []Item, error) {
	var (
		folders []Folder
		items   []Item
	)
	err := f.withLock(ctx, false, func(m *Memory) error {
		var err error
		folders, items, err = m.Children(ctx, folderID)
		return err
	})
	return folders, items, err
}

func (f *File) Export(ctx context.Context) (Tree, error) {
	var tree Tree
	err := f.withLock(ctx, false, func(m *Memory) error {
		var err error
		tree, err = m.Export(ctx)
		return err
	})
	return tree, err
}
