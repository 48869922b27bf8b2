package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/odvcencio/gitserve/pkg/object"
	"github.com/odvcencio/gitserve/pkg/pktline"
	"github.com/odvcencio/gitserve/pkg/repo"
)

// FetchRequest is a parsed v2 "fetch" command body. Shallow and filter
// arguments are parsed but not otherwise honored (no shallow/partial-clone
// support).
type FetchRequest struct {
	Wants          []object.OID
	Haves          []object.OID
	Done           bool
	ThinPack       bool
	NoProgress     bool
	IncludeTag     bool
	OfsDelta       bool
	SidebandAll    bool
	Shallows       []object.OID
	Deepen         int
	DeepenRelative bool
	DeepenSince    string
	DeepenNot      []object.OID
	Filter         string
}

// ParseFetchArgs parses the argument lines of a v2 fetch command.
func ParseFetchArgs(lines []string) FetchRequest {
	var req FetchRequest
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "want "):
			req.Wants = append(req.Wants, object.OID(strings.TrimPrefix(l, "want ")))
		case strings.HasPrefix(l, "have "):
			req.Haves = append(req.Haves, object.OID(strings.TrimPrefix(l, "have ")))
		case l == "done":
			req.Done = true
		case l == "thin-pack":
			req.ThinPack = true
		case l == "no-progress":
			req.NoProgress = true
		case l == "include-tag":
			req.IncludeTag = true
		case l == "ofs-delta":
			req.OfsDelta = true
		case l == "sideband-all":
			req.SidebandAll = true
		case strings.HasPrefix(l, "shallow "):
			req.Shallows = append(req.Shallows, object.OID(strings.TrimPrefix(l, "shallow ")))
		case strings.HasPrefix(l, "deepen "):
			n, _ := strconv.Atoi(strings.TrimPrefix(l, "deepen "))
			req.Deepen = n
		case l == "deepen-relative":
			req.DeepenRelative = true
		case strings.HasPrefix(l, "deepen-since "):
			req.DeepenSince = strings.TrimPrefix(l, "deepen-since ")
		case strings.HasPrefix(l, "deepen-not "):
			req.DeepenNot = append(req.DeepenNot, object.OID(strings.TrimPrefix(l, "deepen-not ")))
		case strings.HasPrefix(l, "filter "):
			req.Filter = strings.TrimPrefix(l, "filter ")
		}
	}
	return req
}

// progressLines formats the fixed set of progress strings emitted on the
// sideband progress channel, parameterized on the object count read back
// from the emitted pack header.
func progressLines(n int) []string {
	return []string{
		fmt.Sprintf("remote: Counting objects: %d, done.\r\n", n),
		fmt.Sprintf("remote: Compressing objects: 100%% (%d/%d), done.\r\n", n, n),
		fmt.Sprintf("remote: Total %d (delta 0), reused %d (delta 0), pack-reused 0\r\n", n, n),
	}
}

// packObjectCount reads the big-endian uint32 object count at offset 8 of a
// PACK v2 stream (after the 4-byte "PACK" magic and 4-byte version).
func packObjectCount(pack []byte) int {
	if len(pack) < 12 {
		return 0
	}
	return int(binary.BigEndian.Uint32(pack[8:12]))
}

// Fetch runs the v2 "fetch" command against r and writes the response
// (a negotiation round, or the final packfile round) to w.
func Fetch(w *bytes.Buffer, r *repo.Repo, req FetchRequest) error {
	if !req.Done {
		return fetchNegotiationRound(w, r, req)
	}
	if len(req.Wants) == 0 {
		w.Write(pktline.EncodeFlush())
		return nil
	}
	return fetchPackfileRound(w, r, req)
}

func fetchNegotiationRound(w *bytes.Buffer, r *repo.Repo, req FetchRequest) error {
	common := r.Store.FindCommonCommits(req.Haves)

	writeLine := func(s string) error {
		pkt, err := pktline.EncodeString(s)
		if err != nil {
			return err
		}
		w.Write(pkt)
		return nil
	}

	if err := writeLine("acknowledgments\n"); err != nil {
		return err
	}
	if len(common) == 0 {
		if err := writeLine("NAK\n"); err != nil {
			return err
		}
	} else {
		for _, oid := range common {
			if err := writeLine(fmt.Sprintf("ACK %s\n", oid)); err != nil {
				return err
			}
		}
	}
	if err := writeLine("ready\n"); err != nil {
		return err
	}
	w.Write(pktline.EncodeDelim())
	return nil
}

func fetchPackfileRound(w *bytes.Buffer, r *repo.Repo, req FetchRequest) error {
	pkt, err := pktline.EncodeString("packfile\n")
	if err != nil {
		return err
	}
	w.Write(pkt)

	sb := pktline.NewSidebandWriter(w)

	oids, err := r.Store.CollectObjectsForPack(req.Wants, req.Haves)
	if err != nil {
		return fmt.Errorf("fetch: collect objects: %w", err)
	}
	packBytes, err := r.Store.PackObjects(oids)
	if err != nil {
		return fmt.Errorf("fetch: pack objects: %w", err)
	}
	n := packObjectCount(packBytes)

	if !req.NoProgress {
		lines := progressLines(n)
		for _, l := range lines[:2] {
			if err := sb.WriteProgress(l); err != nil {
				return err
			}
		}
	}

	if err := sb.WriteData(packBytes); err != nil {
		return fmt.Errorf("fetch: write pack data: %w", err)
	}

	if !req.NoProgress {
		lines := progressLines(n)
		if err := sb.WriteProgress(lines[2]); err != nil {
			return err
		}
	}

	w.Write(pktline.EncodeFlush())
	return nil
}
