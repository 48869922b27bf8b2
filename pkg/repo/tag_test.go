package repo

import (
	"errors"
	"testing"

	"github.com/odvcencio/gitserve/pkg/object"
)

func TestTagResolveAndList(t *testing.T) {
	r := initRepoWithCommit(t)
	head, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}

	if err := r.UpdateRef("refs/tags/v1.0.0", head); err != nil {
		t.Fatalf("UpdateRef(tag): %v", err)
	}

	resolved, err := r.ResolveTag("v1.0.0")
	if err != nil {
		t.Fatalf("ResolveTag: %v", err)
	}
	if resolved != head {
		t.Fatalf("resolved tag = %q, want %q", resolved, head)
	}

	tags, err := r.ListTags()
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "v1.0.0" {
		t.Fatalf("ListTags = %v, want [v1.0.0]", tags)
	}

	withOIDs, err := r.ListTagsWithOIDs()
	if err != nil {
		t.Fatalf("ListTagsWithOIDs: %v", err)
	}
	if withOIDs["v1.0.0"] != head {
		t.Fatalf("ListTagsWithOIDs[v1.0.0] = %q, want %q", withOIDs["v1.0.0"], head)
	}
}

func TestTagCreateExistingWithoutCASFails(t *testing.T) {
	r := initRepoWithCommit(t)
	head, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}

	results, err := r.ApplyRefUpdates([]RefCommand{
		{OldOID: object.ZeroOID, NewOID: head, Ref: "refs/tags/v1.0.0"},
	}, false)
	if err != nil {
		t.Fatalf("ApplyRefUpdates first: %v", err)
	}
	if !results[0].OK {
		t.Fatalf("first tag create failed: %+v", results[0])
	}

	results, err = r.ApplyRefUpdates([]RefCommand{
		{OldOID: object.ZeroOID, NewOID: head, Ref: "refs/tags/v1.0.0"},
	}, false)
	if err != nil {
		t.Fatalf("ApplyRefUpdates second: %v", err)
	}
	if results[0].OK {
		t.Fatalf("expected second create-without-CAS to be rejected")
	}
	if results[0].Reason != reasonRefAlreadyExists {
		t.Fatalf("reason = %q, want %q", results[0].Reason, reasonRefAlreadyExists)
	}
}

func TestTagForceUpdateMovesTarget(t *testing.T) {
	r := initRepoWithCommit(t)
	h1, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}

	if err := r.UpdateRef("refs/tags/v1.0.0", h1); err != nil {
		t.Fatalf("UpdateRef(tag): %v", err)
	}

	h2 := object.OID("cccccccccccccccccccccccccccccccccccccccc")
	if err := r.UpdateRefCAS("refs/tags/v1.0.0", h2, h1); err != nil {
		t.Fatalf("UpdateRefCAS: %v", err)
	}

	resolved, err := r.ResolveTag("v1.0.0")
	if err != nil {
		t.Fatalf("ResolveTag: %v", err)
	}
	if resolved != h2 {
		t.Fatalf("resolved tag = %q, want %q", resolved, h2)
	}
}

func TestTagDelete(t *testing.T) {
	r := initRepoWithCommit(t)
	head, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}
	if err := r.UpdateRef("refs/tags/v1.0.0", head); err != nil {
		t.Fatalf("UpdateRef(tag): %v", err)
	}

	if err := r.DeleteRef("refs/tags/v1.0.0", head); err != nil {
		t.Fatalf("DeleteRef: %v", err)
	}
	if _, err := r.ResolveTag("v1.0.0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ResolveTag after delete: err = %v, want ErrNotFound", err)
	}
}

func TestPeelTag_NonTagObjectReportsNotOK(t *testing.T) {
	r := initRepoWithCommit(t)
	head, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}

	_, ok, err := r.PeelTag(head)
	if err != nil {
		t.Fatalf("PeelTag: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for a commit OID (lightweight tag target)")
	}
}
