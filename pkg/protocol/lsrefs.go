package protocol

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/odvcencio/gitserve/pkg/pktline"
	"github.com/odvcencio/gitserve/pkg/repo"
)

// LsRefsRequest is a parsed v2 ls-refs command's capability-args.
type LsRefsRequest struct {
	Peel      bool
	Symrefs   bool
	RefPrefix []string
}

// ParseLsRefsArgs parses ls-refs argument lines that the caller has already
// read off the wire.
func ParseLsRefsArgs(args []string) LsRefsRequest {
	var req LsRefsRequest
	for _, a := range args {
		switch {
		case a == "peel":
			req.Peel = true
		case a == "symrefs":
			req.Symrefs = true
		case strings.HasPrefix(a, "ref-prefix "):
			req.RefPrefix = append(req.RefPrefix, strings.TrimPrefix(a, "ref-prefix "))
		}
	}
	return req
}

// LsRefs runs the ls-refs command against r and writes its pkt-line output
// (one line per matched ref, optionally a peel line, then flush) to w.
func LsRefs(w *bytes.Buffer, r *repo.Repo, req LsRefsRequest) error {
	listing, err := r.ListAllRefs()
	if err != nil {
		return fmt.Errorf("ls-refs: %w", err)
	}

	for _, ref := range listing.Refs {
		if ref.Name == "HEAD" && len(req.RefPrefix) > 0 {
			// HEAD only matches an explicit prefix list if "HEAD" itself is named.
			if !matchesAnyPrefix("HEAD", req.RefPrefix) {
				continue
			}
		} else if len(req.RefPrefix) > 0 && !matchesAnyPrefix(ref.Name, req.RefPrefix) {
			continue
		}

		line := fmt.Sprintf("%s %s", ref.OID, ref.Name)
		if req.Symrefs && ref.Name == "HEAD" && listing.SymbolicHead != "" {
			line += fmt.Sprintf(" symref-target:%s", listing.SymbolicHead)
		}
		line += "\n"
		pkt, err := pktline.EncodeString(line)
		if err != nil {
			return err
		}
		w.Write(pkt)

		if req.Peel && strings.HasPrefix(ref.Name, "refs/tags/") {
			target, ok, err := r.PeelTag(ref.OID)
			if err != nil {
				return fmt.Errorf("ls-refs: peel %s: %w", ref.Name, err)
			}
			if ok {
				peelLine := fmt.Sprintf("%s %s^{}\n", target, ref.Name)
				pkt, err := pktline.EncodeString(peelLine)
				if err != nil {
					return err
				}
				w.Write(pkt)
			}
		}
	}

	w.Write(pktline.EncodeFlush())
	return nil
}

func matchesAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// ScanPktLineArgs reads a sequence of pkt-line data packets up to (and
// consuming) the next flush/delim, returning their decoded string payloads
// plus which of the two terminated the block. A v2 command body is
// command-header, capability-list, delim, command-args, flush — so a
// caller reads the capability list first (discarding it, terminator
// KindDelim) and then the args (terminator KindFlush); a command with no
// args at all skips straight to KindFlush on the first call.
func ScanPktLineArgs(scanner *pktline.Scanner) ([]string, pktline.PacketKind, error) {
	var lines []string
	for scanner.Scan() {
		pkt := scanner.Packet()
		switch pkt.Kind {
		case pktline.KindFlush, pktline.KindDelim:
			return lines, pkt.Kind, nil
		case pktline.KindData:
			lines = append(lines, strings.TrimRight(string(pkt.Payload), "\n"))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	return lines, pktline.KindFlush, nil
}
