package git

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// CommitDetail diffs a commit against its first parent. A root commit is
// diffed against the empty tree, so all of its files are reported as added.
func (r *Repository) CommitDetail(ctx context.Context, commitID string) (*CommitDetail, error) {
	commit, err := r.CommitObject(commitID)
	if err != nil {
		return nil, err
	}

	to, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %w", commit.Hash, err)
	}

	from := &object.Tree{}
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("failed to read parent of %s: %w", commit.Hash, err)
		}
		from, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("failed to read tree of %s: %w", parent.Hash, err)
		}
	}

	files, err := diffTrees(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to diff commit %s: %w", commit.Hash, err)
	}

	return &CommitDetail{
		Commit: newCommitInfo(commit),
		Files:  files,
	}, nil
}

// DiffRevisions diffs the trees of two revisions (commit ids or branches)
func (r *Repository) DiffRevisions(ctx context.Context, fromRev, toRev string) ([]FileChange, error) {
	fromHash, err := r.ResolveRevision(fromRev)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	toHash, err := r.ResolveRevision(toRev)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}

	from, err := r.commitTree(fromHash)
	if err != nil {
		return nil, err
	}
	to, err := r.commitTree(toHash)
	if err != nil {
		return nil, err
	}

	files, err := diffTrees(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", fromHash, toHash, err)
	}
	return files, nil
}

// diffTrees enumerates changed paths first, then renders each patch into the
// entry of its path. Order follows the tree comparison.
func diffTrees(ctx context.Context, from, to *object.Tree) ([]FileChange, error) {
	changes, err := object.DiffTreeWithOptions(ctx, from, to, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, err
	}

	files := make([]FileChange, 0, len(changes))
	index := make(map[string]int, len(changes))
	for _, change := range changes {
		status, err := changeStatus(change)
		if err != nil {
			return nil, err
		}

		fc := FileChange{Path: change.To.Name, Status: status}
		if fc.Path == "" {
			fc.Path = change.From.Name
		}
		if status == StatusRenamed {
			fc.OldPath = change.From.Name
		}

		index[fc.Path] = len(files)
		files = append(files, fc)
	}

	for _, change := range changes {
		if err := renderPatch(ctx, change, files, index); err != nil {
			return nil, err
		}
	}

	return files, nil
}

func changeStatus(change *object.Change) (ChangeStatus, error) {
	action, err := change.Action()
	if err != nil {
		return "", fmt.Errorf("failed to classify change %s: %w", change, err)
	}

	switch action {
	case merkletrie.Insert:
		return StatusAdded, nil
	case merkletrie.Delete:
		return StatusDeleted, nil
	case merkletrie.Modify:
		switch {
		case change.From.Name != change.To.Name:
			return StatusRenamed, nil
		case change.From.TreeEntry.Hash == change.To.TreeEntry.Hash:
			return StatusChanged, nil
		default:
			return StatusModified, nil
		}
	default:
		return StatusChanged, nil
	}
}

func renderPatch(ctx context.Context, change *object.Change, files []FileChange, index map[string]int) error {
	patch, err := change.PatchContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute patch for %s: %w", change, err)
	}

	binary, err := changeIsBinary(change)
	if err != nil {
		return err
	}

	for _, fp := range patch.FilePatches() {
		i, ok := index[filePatchPath(fp)]
		if !ok {
			continue
		}
		fc := &files[i]

		if binary {
			placeholder := BinaryPlaceholder
			fc.Diff = &placeholder
			continue
		}

		chunks := fp.Chunks()
		for i, chunk := range chunks {
			lines := splitLines(chunk.Content())
			prefix := " "
			switch chunk.Type() {
			case fdiff.Add:
				prefix = "+"
			case fdiff.Delete:
				prefix = "-"
			case fdiff.Equal:
				lines = contextLines(lines, i > 0, i < len(chunks)-1)
			}

			for _, line := range lines {
				appendLine(fc, prefix, line)
			}
		}
	}

	return nil
}

// appendLine adds one rendered line, initializing the diff on first use
func appendLine(fc *FileChange, prefix, line string) {
	if fc.Diff == nil {
		empty := ""
		fc.Diff = &empty
	}
	if !utf8.ValidString(line) {
		line = BinaryPlaceholder
	}
	*fc.Diff += prefix + line + "\n"
}

// contextLines keeps fdiff.DefaultContextLines unchanged lines on each side
// of a change and drops the rest of an unchanged run.
func contextLines(lines []string, afterChange, beforeChange bool) []string {
	n := fdiff.DefaultContextLines
	switch {
	case afterChange && beforeChange:
		if len(lines) <= 2*n {
			return lines
		}
		kept := make([]string, 0, 2*n)
		kept = append(kept, lines[:n]...)
		return append(kept, lines[len(lines)-n:]...)
	case afterChange:
		return lines[:min(n, len(lines))]
	case beforeChange:
		return lines[max(0, len(lines)-n):]
	default:
		return nil
	}
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func filePatchPath(fp fdiff.FilePatch) string {
	from, to := fp.Files()
	if to != nil {
		return to.Path()
	}
	if from != nil {
		return from.Path()
	}
	return ""
}

// changeIsBinary inspects blob content directly since go-git reports any
// chunkless patch, such as an added empty file, as binary.
func changeIsBinary(change *object.Change) (bool, error) {
	from, to, err := change.Files()
	if err != nil {
		return false, fmt.Errorf("failed to read blobs of %s: %w", change, err)
	}

	for _, f := range []*object.File{from, to} {
		if f == nil {
			continue
		}
		isBinary, err := f.IsBinary()
		if err != nil {
			return false, fmt.Errorf("failed to inspect %s: %w", f.Name, err)
		}
		if isBinary {
			return true, nil
		}
	}
	return false, nil
}
