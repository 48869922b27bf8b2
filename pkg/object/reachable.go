package object

import (
	"fmt"
	"sort"
	"strings"
)

// ReachableSet returns all object OIDs reachable from roots by following
// object references. Missing roots are ignored.
func (s *Store) ReachableSet(roots []OID) (map[OID]struct{}, error) {
	roots = uniqueNormalizedOIDs(roots)
	out := make(map[OID]struct{}, len(roots))
	if len(roots) == 0 {
		return out, nil
	}

	stack := make([]OID, 0, len(roots))
	stack = append(stack, roots...)
	for len(stack) > 0 {
		oid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if oid == "" || oid.IsZero() {
			continue
		}
		if _, ok := out[oid]; ok {
			continue
		}
		if !s.Has(oid) {
			continue
		}
		out[oid] = struct{}{}

		objType, data, err := s.Read(oid)
		if err != nil {
			return nil, fmt.Errorf("reachable set read %s: %w", oid, err)
		}
		refs, err := referencedOIDs(objType, data)
		if err != nil {
			return nil, fmt.Errorf("reachable set parse %s (%s): %w", oid, objType, err)
		}
		stack = append(stack, refs...)
	}

	return out, nil
}

func referencedOIDs(objType ObjectType, data []byte) ([]OID, error) {
	switch objType {
	case TypeBlob:
		return nil, nil
	case TypeTag:
		tag, err := UnmarshalTag(data)
		if err != nil {
			return nil, err
		}
		return []OID{tag.Object}, nil
	case TypeCommit:
		commit, err := UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		refs := make([]OID, 0, 1+len(commit.Parents))
		refs = append(refs, commit.Tree)
		refs = append(refs, commit.Parents...)
		return refs, nil
	case TypeTree:
		tree, err := UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		refs := make([]OID, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			refs = append(refs, e.OID)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object type %q", objType)
	}
}

func uniqueNormalizedOIDs(in []OID) []OID {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[OID]struct{}, len(in))
	out := make([]OID, 0, len(in))
	for _, oid := range in {
		oid = OID(strings.TrimSpace(string(oid)))
		if oid == "" {
			continue
		}
		if _, ok := seen[oid]; ok {
			continue
		}
		seen[oid] = struct{}{}
		out = append(out, oid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
