package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/gitserve/pkg/object"
	"github.com/odvcencio/gitserve/pkg/pktline"
	"github.com/odvcencio/gitserve/pkg/repo"
)

// ReceivePackCommand is one parsed "<oldOid> <newOid> <ref>" command line.
type ReceivePackCommand struct {
	OldOID object.OID
	NewOID object.OID
	Ref    string
}

// ReceivePackRequest is the fully parsed request body: the command list,
// the client's advertised capabilities (from the first command line), and
// the trailing raw packfile bytes.
type ReceivePackRequest struct {
	Commands     []ReceivePackCommand
	Capabilities map[string]bool
	Pack         []byte
}

// ParseReceivePackRequest reads the pkt-line command section (terminated by
// flush) followed by the raw packfile from body.
func ParseReceivePackRequest(body []byte) (ReceivePackRequest, error) {
	var req ReceivePackRequest
	req.Capabilities = map[string]bool{}

	scanner := pktline.NewScanner(bytes.NewReader(body))
	first := true
	for scanner.Scan() {
		pkt := scanner.Packet()
		if pkt.Kind != pktline.KindData {
			break
		}
		line := string(pkt.Payload)
		if first {
			if idx := strings.IndexByte(line, 0); idx >= 0 {
				capStr := line[idx+1:]
				line = line[:idx]
				for _, c := range strings.Fields(capStr) {
					req.Capabilities[c] = true
				}
			}
			first = false
		}
		line = strings.TrimRight(line, "\n")
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 {
			return req, fmt.Errorf("receive-pack: malformed command line %q", line)
		}
		req.Commands = append(req.Commands, ReceivePackCommand{
			OldOID: object.OID(fields[0]),
			NewOID: object.OID(fields[1]),
			Ref:    fields[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return req, fmt.Errorf("receive-pack: parse commands: %w", err)
	}

	rest, err := io.ReadAll(scanner.Reader())
	if err != nil {
		return req, fmt.Errorf("receive-pack: read packfile: %w", err)
	}
	req.Pack = rest
	return req, nil
}

// ReceivePack processes a fully-parsed request against r and writes the
// report-status body to w.
func ReceivePack(w *bytes.Buffer, r *repo.Repo, req ReceivePackRequest) error {
	writeLine := func(s string) error {
		pkt, err := pktline.EncodeString(s)
		if err != nil {
			return err
		}
		w.Write(pkt)
		return nil
	}

	if len(req.Pack) > 0 {
		if _, _, err := r.Store.IndexPack(req.Pack); err != nil {
			if err := writeLine(fmt.Sprintf("unpack %s\n", err.Error())); err != nil {
				return err
			}
			w.Write(pktline.EncodeFlush())
			return nil
		}
	}

	commands := make([]repo.RefCommand, len(req.Commands))
	for i, c := range req.Commands {
		commands[i] = repo.RefCommand{OldOID: c.OldOID, NewOID: c.NewOID, Ref: c.Ref}
	}

	atomic := req.Capabilities["atomic"]
	results, err := r.ApplyRefUpdates(commands, atomic)
	if err != nil {
		return fmt.Errorf("receive-pack: apply ref updates: %w", err)
	}

	if err := writeLine("unpack ok\n"); err != nil {
		return err
	}
	for _, res := range results {
		var line string
		if res.OK {
			line = fmt.Sprintf("ok %s\n", res.Ref)
		} else {
			line = fmt.Sprintf("ng %s %s\n", res.Ref, res.Reason)
		}
		if err := writeLine(line); err != nil {
			return err
		}
	}
	w.Write(pktline.EncodeFlush())
	return nil
}

// PackFilename derives a timestamp-based staging name. Nothing in this
// module calls it — IndexPack itself picks the published pack-<sha1>.pack
// name once indexing succeeds.
func PackFilename(now time.Time) string {
	return "pack-" + strconv.FormatInt(now.UnixNano(), 10) + ".pack"
}
