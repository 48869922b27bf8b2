package repo

import (
	"testing"
	"time"

	"github.com/odvcencio/gitserve/pkg/object"
)

// initRepoWithCommit initializes a bare repo in a temp dir, writes a single
// blob+tree+commit directly to the object store, and points refs/heads/main
// (and HEAD, via Init's default symref) at it. It gives tests a real commit
// to exercise ref updates and the read API against without a working tree.
func initRepoWithCommit(t *testing.T) *Repo {
	t.Helper()

	r, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	blobOID, err := r.Store.WriteBlob(&object.Blob{Data: []byte("package main\n\nfunc main() {}\n")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}

	treeOID, err := r.Store.WriteTree(&object.Tree{
		Entries: []object.TreeEntry{
			{Mode: object.ModeFile, Name: "main.go", OID: blobOID},
		},
	})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	sig := object.Signature{Name: "test-author", Email: "test@example.com", Seconds: time.Unix(0, 0).Unix(), TZOffset: "+0000"}
	commitOID, err := r.Store.WriteCommit(&object.Commit{
		Tree:      treeOID,
		Author:    sig,
		Committer: sig,
		Message:   "initial",
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	if err := r.UpdateRef("refs/heads/main", commitOID); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	return r
}
