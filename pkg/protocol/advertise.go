// Package protocol implements the Git Smart HTTP wire protocol: capability
// advertisement, the v2 ls-refs/fetch commands, and v0/v1 receive-pack.
package protocol

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/odvcencio/gitserve/pkg/object"
	"github.com/odvcencio/gitserve/pkg/pktline"
	"github.com/odvcencio/gitserve/pkg/repo"
)

// Agent is advertised as this server's identity on both the v2 and v0/v1
// advertisement paths.
const Agent = "gitserve/1.0"

// AdvertiseUploadPackV2 writes the smart-HTTP "# service=git-upload-pack"
// prelude (required by real Git clients fetching over HTTP(S), which
// reject an -advertisement body that doesn't start with it) followed by
// the protocol v2 capability advertisement.
func AdvertiseUploadPackV2(w *bytes.Buffer) error {
	servicePkt, err := pktline.EncodeString("# service=git-upload-pack\n")
	if err != nil {
		return err
	}
	w.Write(servicePkt)
	w.Write(pktline.EncodeFlush())

	lines := []string{
		"version 2\n",
		fmt.Sprintf("agent=%s\n", Agent),
		"ls-refs\n",
		"fetch\n",
		"side-band-64k\n",
		"object-format=sha1\n",
	}
	for _, l := range lines {
		pkt, err := pktline.EncodeString(l)
		if err != nil {
			return err
		}
		w.Write(pkt)
	}
	w.Write(pktline.EncodeFlush())
	return nil
}

// AdvertiseReceivePackV01 writes the v0/v1 capability advertisement for
// git-receive-pack: the service header, every ref (first one carrying the
// NUL-separated capability list), or a zero-OID capabilities^{} line when
// the repository has no refs at all.
func AdvertiseReceivePackV01(w *bytes.Buffer, r *repo.Repo) error {
	servicePkt, err := pktline.EncodeString("# service=git-receive-pack\n")
	if err != nil {
		return err
	}
	w.Write(servicePkt)
	w.Write(pktline.EncodeFlush())

	listing, err := r.ListAllRefs()
	if err != nil {
		return fmt.Errorf("advertise receive-pack: %w", err)
	}

	caps := receivePackCapabilities(listing.SymbolicHead)

	refs := nonHeadRefs(listing.Refs)
	if len(refs) == 0 {
		line := fmt.Sprintf("%s capabilities^{}\x00%s\n", object.ZeroOID, caps)
		pkt, err := pktline.EncodeString(line)
		if err != nil {
			return err
		}
		w.Write(pkt)
		w.Write(pktline.EncodeFlush())
		return nil
	}

	first := refs[0]
	firstLine := fmt.Sprintf("%s %s\x00%s\n", first.OID, first.Name, caps)
	pkt, err := pktline.EncodeString(firstLine)
	if err != nil {
		return err
	}
	w.Write(pkt)

	for _, ref := range refs[1:] {
		line := fmt.Sprintf("%s %s\n", ref.OID, ref.Name)
		pkt, err := pktline.EncodeString(line)
		if err != nil {
			return err
		}
		w.Write(pkt)
	}
	w.Write(pktline.EncodeFlush())
	return nil
}

func receivePackCapabilities(symbolicHead string) string {
	parts := []string{
		"report-status", "delete-refs", "atomic", "no-thin",
		fmt.Sprintf("agent=%s", Agent),
	}
	if symbolicHead != "" {
		parts = append(parts, fmt.Sprintf("symref=HEAD:%s", symbolicHead))
	}
	return strings.Join(parts, " ")
}

// nonHeadRefs drops the synthetic "HEAD" entry ListAllRefs reports; the v0/v1
// advertisement lists only refs/heads/* and refs/tags/* (HEAD's target is
// carried via the symref= capability instead).
func nonHeadRefs(refs []repo.Ref) []repo.Ref {
	out := make([]repo.Ref, 0, len(refs))
	for _, ref := range refs {
		if ref.Name == "HEAD" {
			continue
		}
		out = append(out, ref)
	}
	return out
}
