package object

import "fmt"

// CollectObjectsForPack walks the object graph rooted at wants, stopping at
// any object reachable from haves, and returns the OIDs that must be sent to
// bring a client holding haves up to wants. It is the server-side negotiation
// primitive behind the fetch v2 packfile phase: haves acts as the cut set
// supplied by the client's "have" lines (and any common-ancestor OIDs
// discovered during negotiation).
func (s *Store) CollectObjectsForPack(wants, haves []OID) ([]OID, error) {
	excluded, err := s.ReachableSet(haves)
	if err != nil {
		return nil, fmt.Errorf("collect objects for pack: resolve haves: %w", err)
	}

	wants = uniqueNormalizedOIDs(wants)
	visited := make(map[OID]struct{}, len(wants))
	var order []OID

	stack := make([]OID, 0, len(wants))
	stack = append(stack, wants...)
	for len(stack) > 0 {
		oid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if oid == "" || oid.IsZero() {
			continue
		}
		if _, ok := excluded[oid]; ok {
			continue
		}
		if _, ok := visited[oid]; ok {
			continue
		}
		objType, data, err := s.Read(oid)
		if err != nil {
			s.logger.Warningf("collect objects for pack: skipping unreadable object %s: %v", oid, err)
			continue
		}
		visited[oid] = struct{}{}
		order = append(order, oid)

		refs, err := referencedOIDs(objType, data)
		if err != nil {
			s.logger.Warningf("collect objects for pack: skipping unparseable object %s (%s): %v", oid, objType, err)
			continue
		}
		stack = append(stack, refs...)
	}

	return order, nil
}

// IsDescendant reports whether candidate's history contains ancestor,
// i.e. whether a fast-forward from ancestor to candidate is possible.
// ancestor == candidate counts as a descendant (trivial fast-forward).
func (s *Store) IsDescendant(candidate, ancestor OID) (bool, error) {
	if candidate == ancestor {
		return true, nil
	}
	if ancestor.IsZero() {
		return true, nil
	}
	if candidate.IsZero() {
		return false, nil
	}

	visited := make(map[OID]struct{})
	stack := []OID{candidate}
	for len(stack) > 0 {
		oid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if oid == "" || oid.IsZero() {
			continue
		}
		if _, ok := visited[oid]; ok {
			continue
		}
		visited[oid] = struct{}{}
		if oid == ancestor {
			return true, nil
		}

		commit, err := s.ReadCommit(oid)
		if err != nil {
			return false, fmt.Errorf("is descendant: read commit %s: %w", oid, err)
		}
		stack = append(stack, commit.Parents...)
	}
	return false, nil
}

// FindCommonCommits returns the subset of haves that this store can read.
// Git negotiation calls a "have" common once the server already possesses
// it; unlike a full ancestry check, this does not require the have to be
// reachable from any particular ref, only present in the object store.
func (s *Store) FindCommonCommits(haves []OID) []OID {
	var common []OID
	for _, h := range uniqueNormalizedOIDs(haves) {
		if s.Has(h) {
			common = append(common, h)
		}
	}
	return common
}
