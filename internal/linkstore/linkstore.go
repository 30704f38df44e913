package linkstore

import (
	"context"
	"strings"
)

// RootID is the id of the tree's root folder.
const RootID = "root"

// Item is one saved link.
type Item struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	ParentID string `json:"parent_id"`
	// Path is the display path of the parent folder, derived on read.
	Path string `json:"-"`
}

// Folder is a node of the folder tree.
type Folder struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ParentID string `json:"parent_id,omitempty"`
}

// Tree is the full serialized link tree.
type Tree struct {
	Version int      `json:"version"`
	Folders []Folder `json:"folders"`
	Items   []Item   `json:"items"`
}

// Store is the link-storage collaborator the pipeline drives. It only ever
// adds folders and moves items.
type Store interface {
	ListAll(ctx context.Context) ([]Item, error)
	CreateFolder(ctx context.Context, title, parentID string) (string, error)
	FindChildByTitle(ctx context.Context, title, parentID string) (string, bool, error)
	Move(ctx context.Context, itemID, destFolderID string) error
}

// Exporter is implemented by stores that can produce a full copy of the tree.
type Exporter interface {
	Export(ctx context.Context) (Tree, error)
}

// PathSeparator joins folder titles in derived item paths.
const PathSeparator = " > "

func derivePath(folders map[string]Folder, parentID string) string {
	var segments []string
	seen := make(map[string]struct{})
	for id := parentID; id != "" && id != RootID; {
		if _, loop := seen[id]; loop {
			break
		}
		seen[id] = struct{}{}
		f, ok := folders[id]
		if !ok {
			break
		}
		segments = append(segments, f.Title)
		id = f.ParentID
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, PathSeparator)
}
