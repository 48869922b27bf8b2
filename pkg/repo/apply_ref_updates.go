package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/gitserve/pkg/object"
)

// RefCommand is one "<oldOid> <newOid> <ref>" line from a receive-pack
// request.
type RefCommand struct {
	OldOID object.OID
	NewOID object.OID
	Ref    string
}

// RefUpdateResult is the per-command outcome reported back on the wire as
// "ok <ref>" or "ng <ref> <reason>".
type RefUpdateResult struct {
	Ref    string
	OK     bool
	Reason string
}

// Failure reasons, reported verbatim on the wire.
const (
	reasonOldOIDMismatch   = "ref update rejected: old OID mismatch"
	reasonRefDoesNotExist  = "ref doesn't exist"
	reasonRefAlreadyExists = "ref already exists"
	reasonNonFastForward   = "non-fast-forward update rejected"
	reasonAtomicRolledBack = "atomic transaction failed"
)

// ApplyRefUpdates validates and applies a batch of ref commands against the
// repository's current state.
//
// Validation (phase one) classifies each command by (oldOid == ZERO_OID,
// newOid == ZERO_OID) into create/delete/update and checks its precondition
// without touching any ref. If atomic is true and any command fails
// validation, every command that would otherwise have succeeded is flipped
// to "atomic transaction failed" and nothing is written (phase two is
// skipped entirely). Otherwise, phase two applies every command that
// validated ok; a failure at that point flips just that one result without
// affecting the others. A ref that another writer moved between validation
// and apply reports the precondition reason ("ref already exists" for a
// create, the old-OID mismatch reason otherwise); any other store-level
// failure reports "failed to update: <msg>".
func (r *Repo) ApplyRefUpdates(commands []RefCommand, atomic bool) ([]RefUpdateResult, error) {
	results := make([]RefUpdateResult, len(commands))

	anyFailed := false
	for i, cmd := range commands {
		ok, reason, err := r.validateRefCommand(cmd)
		if err != nil {
			return nil, fmt.Errorf("apply ref updates: validate %q: %w", cmd.Ref, err)
		}
		results[i] = RefUpdateResult{Ref: cmd.Ref, OK: ok, Reason: reason}
		if !ok {
			anyFailed = true
		}
	}

	if atomic && anyFailed {
		for i := range results {
			if results[i].OK {
				results[i].OK = false
				results[i].Reason = reasonAtomicRolledBack
			}
		}
		return results, nil
	}

	for i, cmd := range commands {
		if !results[i].OK {
			continue
		}
		if err := r.applyRefCommand(cmd); err != nil {
			results[i].OK = false
			switch {
			case errors.Is(err, ErrRefCASMismatch) && cmd.OldOID.IsZero():
				results[i].Reason = reasonRefAlreadyExists
			case errors.Is(err, ErrRefCASMismatch):
				results[i].Reason = reasonOldOIDMismatch
			default:
				results[i].Reason = fmt.Sprintf("failed to update: %s", err)
			}
		}
	}

	return results, nil
}

// validateRefCommand classifies a command and checks its precondition,
// never mutating any ref.
func (r *Repo) validateRefCommand(cmd RefCommand) (ok bool, reason string, err error) {
	currentOID, resolveErr := r.ResolveRef(cmd.Ref)
	refExists := resolveErr == nil
	if resolveErr != nil && !errors.Is(resolveErr, ErrNotFound) {
		return false, "", resolveErr
	}

	switch {
	case cmd.OldOID.IsZero() && !cmd.NewOID.IsZero():
		// create
		if refExists {
			return false, reasonRefAlreadyExists, nil
		}
		return true, "", nil

	case !cmd.OldOID.IsZero() && cmd.NewOID.IsZero():
		// delete
		if !refExists {
			return false, reasonRefDoesNotExist, nil
		}
		if currentOID != cmd.OldOID {
			return false, reasonOldOIDMismatch, nil
		}
		return true, "", nil

	default:
		// update
		if !refExists {
			return false, reasonRefDoesNotExist, nil
		}
		if currentOID != cmd.OldOID {
			return false, reasonOldOIDMismatch, nil
		}
		descendant, err := r.Store.IsDescendant(cmd.NewOID, currentOID)
		if err != nil {
			return false, "", err
		}
		if !descendant {
			return false, reasonNonFastForward, nil
		}
		return true, "", nil
	}
}

// applyRefCommand performs the ref-level mutation for a command that
// already passed validation.
func (r *Repo) applyRefCommand(cmd RefCommand) error {
	if cmd.NewOID.IsZero() {
		return r.DeleteRef(cmd.Ref, cmd.OldOID)
	}
	return r.UpdateRefCAS(cmd.Ref, cmd.NewOID, cmd.OldOID)
}
