package organize

import (
	"context"
	"fmt"

	"linksort/internal/linkstore"
	"linksort/internal/services"
	"linksort/internal/textutil"
)

// Mutator files items into the folder tree. It only creates folders and
// moves the one item it is given.
type Mutator struct {
	links     linkstore.Store
	rootID    string
	delimiter string
}

// NewMutator returns a mutator rooted at rootID.
func NewMutator(links linkstore.Store, rootID, delimiter string) Mutator {
	return Mutator{links: links, rootID: rootID, delimiter: delimiter}
}

// ApplyResult resolves categoryPath below the root, creating missing
// segments, then moves itemID into the final folder. It returns the folder id
// and how many folders were created.
func (m Mutator) ApplyResult(ctx context.Context, itemID, categoryPath string) (string, int, error) {
	segments := textutil.SplitPath(categoryPath, m.delimiter)
	if len(segments) == 0 {
		return "", 0, services.Wrap(services.ErrValidation, "organize", "apply result", "empty category path", nil)
	}
	parent := m.rootID
	created := 0
	for _, title := range segments {
		id, found, err := m.links.FindChildByTitle(ctx, title, parent)
		if err != nil {
			return "", created, fmt.Errorf("find folder %q: %w", title, err)
		}
		if !found {
			id, err = m.links.CreateFolder(ctx, title, parent)
			if err != nil {
				return "", created, fmt.Errorf("create folder %q: %w", title, err)
			}
			created++
		}
		parent = id
	}
	if err := m.links.Move(ctx, itemID, parent); err != nil {
		return "", created, fmt.Errorf("move item %s: %w", itemID, err)
	}
	return parent, created, nil
}
