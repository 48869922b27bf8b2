package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/gitserve/pkg/object"
)

var (
	// ErrRefCASMismatch is returned by UpdateRefCAS when the ref's current
	// value does not match the caller's expected old value.
	ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")
	// ErrNotFound is returned for refs, objects, or paths absent from the
	// repository snapshot.
	ErrNotFound = errors.New("not found")
	// ErrTooManySymrefHops guards against a cycle of symbolic refs.
	ErrTooManySymrefHops = errors.New("too many symref hops")

	ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")
)

const maxSymrefHops = 5

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed. The ref update is not rolled back.
type RefUpdateReflogError struct {
	Ref    string
	OldOID object.OID
	NewOID object.OID
	Err    error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf(
		"update ref %q: %s (old=%s new=%s): %v",
		e.Ref, ErrRefUpdatedButReflogAppendFailed, e.OldOID, e.NewOID, e.Err,
	)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// Init opens the bare repository rooted at path, creating the skeleton
// (HEAD, objects/, refs/heads/, refs/tags/, logs/refs/heads/) if HEAD is
// absent. Init is idempotent: calling it on an already-initialized
// repository just opens it, matching the "initialized lazily on first
// request if missing" lifecycle.
func Init(path string) (*Repo, error) {
	headPath := filepath.Join(path, "HEAD")
	if _, err := os.Stat(headPath); err == nil {
		return open(path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("init: stat HEAD: %w", err)
	}

	dirs := []string{
		filepath.Join(path, "objects"),
		filepath.Join(path, "refs", "heads"),
		filepath.Join(path, "refs", "tags"),
		filepath.Join(path, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	return &Repo{
		RootDir: path,
		Store:   object.NewStore(path),
	}, nil
}

// Open opens an existing bare repository at path. Returns ErrNotFound if
// no HEAD file is present.
func Open(path string) (*Repo, error) {
	return open(path)
}

func open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}
	if _, err := os.Stat(filepath.Join(abs, "HEAD")); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("open: stat HEAD: %w", err)
	}
	return &Repo{
		RootDir: abs,
		Store:   object.NewStore(abs),
	}, nil
}

// Head reads HEAD. If the content starts with "ref: ", it returns the
// symbolic ref path (e.g. "refs/heads/main"). Otherwise it returns the raw
// content as a detached OID string.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.RootDir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if strings.HasPrefix(content, "ref: ") {
		return strings.TrimPrefix(content, "ref: "), nil
	}
	return content, nil
}

// ResolveRef resolves a ref name to an OID, recursively following symbolic
// refs up to maxSymrefHops deep. Returns ErrNotFound if the ref does not
// exist.
//
// Resolution order:
//  1. If name is "HEAD", read HEAD; if it names another ref, resolve that.
//  2. If name starts with "refs/", read it directly.
//  3. Otherwise, try "refs/heads/<name>".
func (r *Repo) ResolveRef(name string) (object.OID, error) {
	return r.resolveRefHops(name, 0)
}

func (r *Repo) resolveRefHops(name string, hops int) (object.OID, error) {
	if hops > maxSymrefHops {
		return "", fmt.Errorf("resolve ref %q: %w", name, ErrTooManySymrefHops)
	}

	if name == "HEAD" {
		head, err := r.Head()
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(head, "refs/") {
			return r.resolveRefHops(head, hops+1)
		}
		if head == "" {
			return "", fmt.Errorf("resolve ref %q: %w", name, ErrNotFound)
		}
		return object.OID(head), nil
	}

	refPath := r.refPath(name)
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("resolve ref %q: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("resolve ref %q: %w", name, err)
	}
	return object.OID(strings.TrimSpace(string(data))), nil
}

// refPath maps a ref name to its on-disk path, defaulting unqualified names
// to refs/heads/<name>.
func (r *Repo) refPath(name string) string {
	if strings.HasPrefix(name, "refs/") {
		return filepath.Join(r.RootDir, filepath.FromSlash(name))
	}
	return filepath.Join(r.RootDir, "refs", "heads", name)
}

// UpdateRef writes an OID to the named ref, unconditionally.
func (r *Repo) UpdateRef(name string, oid object.OID) error {
	return r.UpdateRefCAS(name, oid)
}

// UpdateRefCAS writes oid to the named ref using lockfile + rename atomic
// semantics. If expectedOld is provided, the update only succeeds when the
// ref's current value matches it (object.ZeroOID / "" meaning "must be
// absent").
//
// Reflog append happens after the rename; if it fails, the ref update
// remains committed and a *RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, oid object.OID, expectedOld ...object.OID) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old OID", name)
	}
	hasExpectedOld := len(expectedOld) == 1
	var wantOld object.OID
	if hasExpectedOld {
		wantOld = expectedOld[0]
		if wantOld == "" {
			wantOld = object.ZeroOID
		}
	}

	refPath := r.refPath(name)

	dir := filepath.Dir(refPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldOID, err := readRefOID(refPath)
	if err != nil {
		return fmt.Errorf("update ref %q: read old OID: %w", name, err)
	}
	if hasExpectedOld && oldOID != wantOld {
		return fmt.Errorf(
			"update ref %q: %w (expected %s, found %s)",
			name, ErrRefCASMismatch, wantOld, oldOID,
		)
	}

	if _, err := lockFile.WriteString(string(oid) + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	if err := r.appendReflog(name, oldOID, oid, "update"); err != nil {
		return &RefUpdateReflogError{Ref: name, OldOID: oldOID, NewOID: oid, Err: err}
	}

	return nil
}

// DeleteRef removes the named ref file, CAS-protected on its current value.
func (r *Repo) DeleteRef(name string, expectedOld object.OID) error {
	refPath := r.refPath(name)

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("delete ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldOID, err := readRefOID(refPath)
	if err != nil {
		return fmt.Errorf("delete ref %q: read old OID: %w", name, err)
	}
	if oldOID != expectedOld {
		return fmt.Errorf(
			"delete ref %q: %w (expected %s, found %s)",
			name, ErrRefCASMismatch, expectedOld, oldOID,
		)
	}

	if err := os.Remove(refPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete ref %q: %w", name, ErrNotFound)
		}
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	cleanupLock = true
	_ = os.Remove(lockPath)

	if err := r.appendReflog(name, oldOID, object.ZeroOID, "delete"); err != nil {
		return &RefUpdateReflogError{Ref: name, OldOID: oldOID, NewOID: object.ZeroOID, Err: err}
	}
	return nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefOID(refPath string) (object.OID, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return object.ZeroOID, nil
		}
		return "", err
	}
	return object.OID(strings.TrimSpace(string(data))), nil
}
