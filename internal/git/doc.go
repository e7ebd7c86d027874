// Package git implements the repository engine on top of go-git.
//
// A Repository wraps an on-disk clone (working tree, object database and refs)
// and exposes the read and write operations the service layer needs.
//
// # Reading
//
//   - ResolveReference / ResolveRevision: branch, HEAD or commit id to a commit hash
//   - Paginate / CountCommits: reachable history in committer-date order
//   - ListTree / FileContent: nested tree listings and UTF-8 file reads
//   - CommitDetail / DiffRevisions: per-file status and unified patch text
//   - Branches / Tags / CurrentBranch / WorktreeStatus
//
// Readers resolve a commit once and use that hash for the rest of the call, so a
// concurrent HEAD update never mixes two snapshots.
//
// # Writing
//
//   - Commit: stage explicit paths (or everything) and commit on top of HEAD
//   - UpdateFile: write one file in the working tree, stage it and commit
//   - Pull: fetch one branch from origin and force the local branch to it
//   - Init: create an empty repository
//
// Writers are not synchronized here. Callers serialize them per repository.
//
// # Example Usage
//
//	repo, err := git.Open("/srv/repos/alice/proj")
//	if err != nil {
//	    return err
//	}
//
//	page, err := repo.Paginate(ctx, "main", 1, 20)
//	if err != nil {
//	    return err
//	}
//
//	detail, err := repo.CommitDetail(ctx, page.Items[0].ID)
package git
