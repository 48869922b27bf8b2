package protocol

import (
	"bytes"
	"testing"

	"github.com/odvcencio/gitserve/pkg/object"
	"github.com/odvcencio/gitserve/pkg/pktline"
	"github.com/odvcencio/gitserve/pkg/repo"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *repo.Repo {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	require.NoError(t, err)
	return r
}

func TestAdvertiseUploadPackV2(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, AdvertiseUploadPackV2(&buf))

	scanner := pktline.NewScanner(bytes.NewReader(buf.Bytes()))

	require.True(t, scanner.Scan())
	require.Equal(t, "# service=git-upload-pack\n", string(scanner.Packet().Payload))
	require.True(t, scanner.Scan())
	require.Equal(t, pktline.KindFlush, scanner.Packet().Kind)

	var lines []string
	for scanner.Scan() {
		pkt := scanner.Packet()
		if pkt.Kind == pktline.KindFlush {
			break
		}
		lines = append(lines, string(pkt.Payload))
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, []string{
		"version 2\n",
		"agent=" + Agent + "\n",
		"ls-refs\n",
		"fetch\n",
		"side-band-64k\n",
		"object-format=sha1\n",
	}, lines)
}

func TestAdvertiseReceivePackV01_EmptyRepo(t *testing.T) {
	r := newTestRepo(t)

	var buf bytes.Buffer
	require.NoError(t, AdvertiseReceivePackV01(&buf, r))

	require.Contains(t, buf.String(), "# service=git-receive-pack")
	require.Contains(t, buf.String(), string(object.ZeroOID)+" capabilities^{}\x00")
	require.Contains(t, buf.String(), "report-status")
	require.Contains(t, buf.String(), "symref=HEAD:refs/heads/main")
}

func TestAdvertiseReceivePackV01_WithRefs(t *testing.T) {
	r := newTestRepo(t)
	oid := object.OID("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, r.UpdateRef("refs/heads/main", oid))

	var buf bytes.Buffer
	require.NoError(t, AdvertiseReceivePackV01(&buf, r))

	require.Contains(t, buf.String(), string(oid)+" refs/heads/main\x00")
	require.NotContains(t, buf.String(), "capabilities^{}")
}
