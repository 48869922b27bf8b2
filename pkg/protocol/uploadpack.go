package protocol

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/odvcencio/gitserve/pkg/pktline"
	"github.com/odvcencio/gitserve/pkg/repo"
)

// UploadPackV2 dispatches a single v2 command body (a "command=<name>"
// header pkt, a capability block ended by a delim or a flush, and, after a
// delim, a flush-terminated argument block) against r and writes the
// command's response to w.
func UploadPackV2(w *bytes.Buffer, r *repo.Repo, body []byte) error {
	scanner := pktline.NewScanner(bytes.NewReader(body))

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("upload-pack: read command header: %w", err)
		}
		return fmt.Errorf("upload-pack: empty request body")
	}
	header := scanner.Packet()
	if header.Kind != pktline.KindData {
		return fmt.Errorf("upload-pack: expected command header, got flush/delim")
	}
	headerLine := strings.TrimRight(string(header.Payload), "\n")
	command, ok := strings.CutPrefix(headerLine, "command=")
	if !ok {
		return fmt.Errorf("upload-pack: malformed command header %q", headerLine)
	}

	// The capability-list block follows the header, terminated by a delim
	// if command args follow or a flush if the command takes none; either
	// way the capabilities themselves are informational only and unused
	// here.
	_, terminator, err := ScanPktLineArgs(scanner)
	if err != nil {
		return fmt.Errorf("upload-pack: read capability list: %w", err)
	}

	var args []string
	if terminator == pktline.KindDelim {
		args, _, err = ScanPktLineArgs(scanner)
		if err != nil {
			return fmt.Errorf("upload-pack: read args: %w", err)
		}
	}

	switch command {
	case "ls-refs":
		return LsRefs(w, r, ParseLsRefsArgs(args))
	case "fetch":
		return Fetch(w, r, ParseFetchArgs(args))
	default:
		return fmt.Errorf("upload-pack: unsupported command %q", command)
	}
}
