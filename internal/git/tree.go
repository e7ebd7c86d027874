package git

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// maxTreeDepth guards recursion against pathologically nested trees
const maxTreeDepth = 256

// ListTree lists the tree of rev (commit id, branch, or HEAD when empty),
// optionally scoped to dir. Directories are expanded recursively; a positive
// maxDepth stops expansion below that many levels. An empty repository lists
// nothing.
func (r *Repository) ListTree(ctx context.Context, rev, dir string, maxDepth int) ([]*FileEntry, error) {
	cleanDir, err := cleanTreePath(dir)
	if err != nil {
		return nil, err
	}

	hash, err := r.ResolveRevision(rev)
	if err != nil {
		if errors.Is(err, ErrEmptyRepository) && cleanDir == "" {
			return []*FileEntry{}, nil
		}
		return nil, err
	}

	root, err := r.commitTree(hash)
	if err != nil {
		return nil, err
	}

	tree := root
	if cleanDir != "" {
		entry, err := findEntry(root, cleanDir)
		if err != nil {
			return nil, err
		}
		if entry.Mode != filemode.Dir {
			return nil, fmt.Errorf("%w: %s", ErrNotADirectory, cleanDir)
		}

		tree, err = r.repo.TreeObject(entry.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to read tree %s at %s: %w", cleanDir, hash, err)
		}
	}

	return r.walkTree(ctx, tree, cleanDir, 1, maxDepth)
}

func (r *Repository) walkTree(
	ctx context.Context,
	tree *object.Tree,
	prefix string,
	depth, maxDepth int,
) ([]*FileEntry, error) {
	if depth > maxTreeDepth {
		return nil, fmt.Errorf("%w: %s", ErrTreeTooDeep, prefix)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]*FileEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entryPath := path.Join(prefix, e.Name)
		fe := &FileEntry{Name: e.Name, Path: entryPath}

		switch e.Mode {
		case filemode.Dir:
			fe.IsDir = true
			if maxDepth > 0 && depth >= maxDepth {
				break
			}

			sub, err := r.repo.TreeObject(e.Hash)
			if err != nil {
				return nil, fmt.Errorf("failed to read tree %s: %w", entryPath, err)
			}
			children, err := r.walkTree(ctx, sub, entryPath, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			fe.Children = children
		case filemode.Submodule:
			// gitlinks point into another repository
		default:
			size, err := r.objectSize(e.Hash)
			if err != nil {
				return nil, fmt.Errorf("failed to read blob %s: %w", entryPath, err)
			}
			fe.Size = &size
		}

		entries = append(entries, fe)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

// FileContent reads a text file from rev (commit id, branch, or HEAD when empty)
func (r *Repository) FileContent(rev, filePath string) (*FileContent, error) {
	cleanPath, err := cleanTreePath(filePath)
	if err != nil {
		return nil, err
	}
	if cleanPath == "" {
		return nil, fmt.Errorf("%w: file path is required", ErrInvalidPath)
	}

	hash, err := r.ResolveRevision(rev)
	if err != nil {
		return nil, err
	}

	root, err := r.commitTree(hash)
	if err != nil {
		return nil, err
	}

	entry, err := findEntry(root, cleanPath)
	if err != nil {
		return nil, err
	}
	if !entry.Mode.IsFile() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, cleanPath)
	}

	file, err := root.TreeEntryFile(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s at %s: %w", cleanPath, hash, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read contents of %s at %s: %w", cleanPath, hash, err)
	}
	if !utf8.ValidString(content) {
		return nil, fmt.Errorf("%w: %s", ErrNonUTF8Content, cleanPath)
	}

	return &FileContent{
		Path:    cleanPath,
		Commit:  hash.String(),
		Size:    file.Size,
		Content: content,
	}, nil
}

func (r *Repository) commitTree(hash plumbing.Hash) (*object.Tree, error) {
	commit, err := r.lookupCommit(hash)
	if err != nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read root tree of %s: %w", hash, err)
	}
	return tree, nil
}

func findEntry(root *object.Tree, p string) (*object.TreeEntry, error) {
	entry, err := root.FindEntry(p)
	if err != nil {
		if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, p)
		}
		return nil, fmt.Errorf("failed to look up %s: %w", p, err)
	}
	return entry, nil
}

// cleanTreePath normalizes a slash-separated repository path. The root is "".
func cleanTreePath(p string) (string, error) {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" || p == "." {
		return "", nil
	}
	if strings.ContainsRune(p, '\\') || strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}

	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q escapes the repository", ErrInvalidPath, p)
	}
	return cleaned, nil
}
