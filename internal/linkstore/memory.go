package linkstore

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"linksort/internal/services"
)

// Memory is an in-process Store. The JSON file store loads into one per
// operation.
type Memory struct {
	mu       sync.Mutex
	folders  []Folder
	items    []Item
	folderIx map[string]int
	itemIx   map[string]int
	newID    func() string
}

// NewMemory returns a Memory holding only the root folder.
func NewMemory() *Memory {
	return FromTree(Tree{})
}

// FromTree builds a Memory from a serialized tree, adding the root folder if
// it is missing.
func FromTree(tree Tree) *Memory {
	m := &Memory{
		folderIx: make(map[string]int),
		itemIx:   make(map[string]int),
		newID:    uuid.NewString,
	}
	m.addFolder(Folder{ID: RootID, Title: "Links"})
	for _, f := range tree.Folders {
		if f.ID == RootID {
			m.folders[0].Title = f.Title
			continue
		}
		m.addFolder(f)
	}
	for _, it := range tree.Items {
		m.itemIx[it.ID] = len(m.items)
		m.items = append(m.items, it)
	}
	return m
}

func (m *Memory) addFolder(f Folder) {
	m.folderIx[f.ID] = len(m.folders)
	m.folders = append(m.folders, f)
}

func (m *Memory) folderMap() map[string]Folder {
	out := make(map[string]Folder, len(m.folders))
	for _, f := range m.folders {
		out[f.ID] = f
	}
	return out
}

// ListAll returns every item with its derived folder path.
func (m *Memory) ListAll(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	folders := m.folderMap()
	out := make([]Item, len(m.items))
	for i, it := range m.items {
		it.Path = derivePath(folders, it.ParentID)
		out[i] = it
	}
	return out, nil
}

// CreateFolder adds a child folder under parentID and returns its id.
func (m *Memory) CreateFolder(ctx context.Context, title, parentID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "", services.Wrap(services.ErrValidation, "linkstore", "create folder", "title required", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.folderIx[parentID]; !ok {
		return "", services.Wrap(services.ErrNotFound, "linkstore", "create folder", "parent "+parentID+" not found", nil)
	}
	id := m.newID()
	m.addFolder(Folder{ID: id, Title: title, ParentID: parentID})
	return id, nil
}

// FindChildByTitle returns the first direct child folder of parentID whose
// title equals title exactly.
func (m *Memory) FindChildByTitle(ctx context.Context, title, parentID string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.folders {
		if f.ParentID == parentID && f.Title == title {
			return f.ID, true, nil
		}
	}
	return "", false, nil
}

// Move reparents one item.
func (m *Memory) Move(ctx context.Context, itemID, destFolderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.itemIx[itemID]
	if !ok {
		return services.Wrap(services.ErrNotFound, "linkstore", "move", "item "+itemID+" not found", nil)
	}
	if _, ok := m.folderIx[destFolderID]; !ok {
		return services.Wrap(services.ErrNotFound, "linkstore", "move", "folder "+destFolderID+" not found", nil)
	}
	m.items[idx].ParentID = destFolderID
	return nil
}

// AddLink stores a new link under parentID and returns its id.
func (m *Memory) AddLink(ctx context.Context, title, url, parentID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(url) == "" {
		return "", services.Wrap(services.ErrValidation, "linkstore", "add link", "url required", nil)
	}
	if parentID == "" {
		parentID = RootID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.folderIx[parentID]; !ok {
		return "", services.Wrap(services.ErrNotFound, "linkstore", "add link", "parent "+parentID+" not found", nil)
	}
	id := m.newID()
	m.itemIx[id] = len(m.items)
	m.items = append(m.items, Item{ID: id, Title: strings.TrimSpace(title), URL: strings.TrimSpace(url), ParentID: parentID})
	return id, nil
}

// Children returns the folders and items directly under folderID.
func (m *Memory) Children(ctx context.Context, folderID string) ([]Folder, []Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var folders []Folder
	for _, f := range m.folders {
		if f.ParentID == folderID && f.ID != RootID {
			folders = append(folders, f)
		}
	}
	var items []Item
	for _, it := range m.items {
		if it.ParentID == folderID {
			items = append(items, it)
		}
	}
	return folders, items, nil
}

// FolderCount returns the number of folders including the root.
func (m *Memory) FolderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.folders)
}

// Export returns a copy of the tree.
func (m *Memory) Export(ctx context.Context) (Tree, error) {
	if err := ctx.Err(); err != nil {
		return Tree{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Tree{
		Version: 1,
		Folders: append([]Folder(nil), m.folders...),
		Items:   append([]Item(nil), m.items...),
	}, nil
}
