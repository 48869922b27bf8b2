package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/odvcencio/gitserve/pkg/object"
)

func TestUpdateRefCAS_ConcurrentSingleWinner(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	base := object.OID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err := r.UpdateRef("refs/heads/main", base); err != nil {
		t.Fatalf("UpdateRef(base): %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)

	successCh := make(chan object.OID, workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			next := object.OID(fmt.Sprintf("%040x", i+1))
			err := r.UpdateRefCAS("refs/heads/main", next, base)
			if err != nil {
				errCh <- err
				return
			}
			successCh <- next
		}()
	}

	wg.Wait()
	close(successCh)
	close(errCh)

	var winner object.OID
	successes := 0
	for oid := range successCh {
		successes++
		winner = oid
	}
	if successes != 1 {
		t.Fatalf("successful CAS updates = %d, want 1", successes)
	}

	casMismatches := 0
	for err := range errCh {
		if errors.Is(err, ErrRefCASMismatch) {
			casMismatches++
			continue
		}
		t.Fatalf("unexpected error type: %v", err)
	}
	if casMismatches != workers-1 {
		t.Fatalf("CAS mismatches = %d, want %d", casMismatches, workers-1)
	}

	got, err := r.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef(main): %v", err)
	}
	if got != winner {
		t.Fatalf("refs/heads/main = %s, want winner %s", got, winner)
	}
}

func TestUpdateRefCAS_CleansLockOnMismatch(t *testing.T) {
	dir := t.TempDir()
	r, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	current := object.OID("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	if err := r.UpdateRef("refs/heads/main", current); err != nil {
		t.Fatalf("UpdateRef(current): %v", err)
	}

	err = r.UpdateRefCAS(
		"refs/heads/main",
		object.OID("cccccccccccccccccccccccccccccccccccccccc"),
		object.OID("dddddddddddddddddddddddddddddddddddddddd"),
	)
	if !errors.Is(err, ErrRefCASMismatch) {
		t.Fatalf("expected CAS mismatch, got: %v", err)
	}

	lockPath := filepath.Join(r.RootDir, "refs", "heads", "main.lock")
	if _, statErr := os.Stat(lockPath); !os.IsNotExist(statErr) {
		t.Fatalf("expected no lingering lockfile at %q, stat err=%v", lockPath, statErr)
	}
}

// TestApplyRefUpdates_CreateConcurrentSingleWinner exercises the same
// "branch already exists" CAS race as receive-pack sees when two pushes
// race to create the same ref.
func TestApplyRefUpdates_CreateConcurrentSingleWinner(t *testing.T) {
	r := initRepoWithCommit(t)
	headOID, err := r.ResolveRef("HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD): %v", err)
	}

	const workers = 12
	var wg sync.WaitGroup
	wg.Add(workers)

	results := make([]RefUpdateResult, workers)
	for i := 0; i < workers; i++ {
		i := i
		go func() {
			defer wg.Done()
			out, err := r.ApplyRefUpdates([]RefCommand{
				{OldOID: object.ZeroOID, NewOID: headOID, Ref: "refs/heads/feature"},
			}, false)
			if err != nil {
				t.Errorf("ApplyRefUpdates: %v", err)
				return
			}
			results[i] = out[0]
		}()
	}
	wg.Wait()

	successes, alreadyExists := 0, 0
	for _, res := range results {
		if res.OK {
			successes++
		} else if res.Reason == reasonRefAlreadyExists {
			alreadyExists++
		}
	}
	if successes != 1 {
		t.Fatalf("successful creates = %d, want 1", successes)
	}
	if alreadyExists != workers-1 {
		t.Fatalf("rejected-as-existing = %d, want %d", alreadyExists, workers-1)
	}

	got, err := r.ResolveRef("refs/heads/feature")
	if err != nil {
		t.Fatalf("ResolveRef(feature): %v", err)
	}
	if got != headOID {
		t.Fatalf("feature ref = %s, want %s", got, headOID)
	}
}
