package repo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/gitserve/pkg/object"
)

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init(%q): %v", dir, err)
	}
	if r.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", r.RootDir, dir)
	}

	assertFile(t, filepath.Join(dir, "HEAD"))
	assertDir(t, filepath.Join(dir, "objects"))
	assertDir(t, filepath.Join(dir, "refs", "heads"))
	assertDir(t, filepath.Join(dir, "refs", "tags"))
	assertDir(t, filepath.Join(dir, "logs", "refs", "heads"))

	if r.Store == nil {
		t.Error("Store is nil after Init")
	}
}

func TestInit_ExistingRepoIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	r1, err := Init(dir)
	if err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := r1.UpdateRef("refs/heads/main", object.OID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	r2, err := Init(dir)
	if err != nil {
		t.Fatalf("second Init: %v", err)
	}

	oid, err := r2.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef after re-Init: %v", err)
	}
	if oid != "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("re-Init clobbered existing repo state: got %q", oid)
	}
}

func TestOpen_ExistingRepo(t *testing.T) {
	dir := t.TempDir()

	if _, err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open(%q): %v", dir, err)
	}
	if r.RootDir != dir {
		t.Errorf("RootDir = %q, want %q", r.RootDir, dir)
	}
	if r.Store == nil {
		t.Error("Store is nil after Open")
	}
}

func TestOpen_NoRepo_NotFound(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(dir)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open in non-repo dir: err = %v, want ErrNotFound", err)
	}
}

func TestInit_HeadDefault(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	ref, err := r.Head()
	if err != nil {
		t.Fatalf("Head(): %v", err)
	}
	if ref != "refs/heads/main" {
		t.Errorf("Head() = %q, want %q", ref, "refs/heads/main")
	}
}

func TestUpdateRef_ResolveRef_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	oid := object.OID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	if err := r.UpdateRef("refs/heads/main", oid); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	got, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if got != oid {
		t.Errorf("ResolveRef = %q, want %q", got, oid)
	}
}

func TestResolveRef_HEAD_FollowsBranch(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	oid := object.OID("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	if err := r.UpdateRef("refs/heads/main", oid); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	got, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}
	if got != oid {
		t.Errorf("ResolveRef(HEAD) = %q, want %q", got, oid)
	}
}

func TestResolveRef_ShortName(t *testing.T) {
	dir := t.TempDir()

	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	oid := object.OID("cccccccccccccccccccccccccccccccccccccccc")

	if err := r.UpdateRef("refs/heads/main", oid); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}

	got, err := r.ResolveRef("main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}
	if got != oid {
		t.Errorf("ResolveRef(main) = %q, want %q", got, oid)
	}
}

func TestResolveRef_MissingIsNotFound(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, err := r.ResolveRef("refs/heads/nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ResolveRef(missing): err = %v, want ErrNotFound", err)
	}
}

// helpers

func assertDir(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected directory %q to exist: %v", path, err)
		return
	}
	if !info.IsDir() {
		t.Errorf("%q exists but is not a directory", path)
	}
}

func assertFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Errorf("expected file %q to exist: %v", path, err)
		return
	}
	if info.IsDir() {
		t.Errorf("%q exists but is a directory, expected file", path)
	}
}
