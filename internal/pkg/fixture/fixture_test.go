package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sipcat/corrcore/internal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
- kind: sip
  src: 10.0.0.1
  src_port: 5060
  dst: 10.0.0.2
  dst_port: 5060
  payload: "INVITE sip:bob@10.0.0.2 SIP/2.0"
  call_id: call-1
  from: alice@10.0.0.1
  to: bob@10.0.0.2
  cseq: 1
  method: INVITE
  sdp:
    - address: 192.168.1.10
      rtp_port: 30000
- kind: sip
  src: 10.0.0.2
  src_port: 5060
  dst: 10.0.0.1
  dst_port: 5060
  payload: "SIP/2.0 200 OK"
  call_id: call-1
  from: alice@10.0.0.1
  to: bob@10.0.0.2
  cseq: 1
  status: 200
  reason: "200 OK"
- kind: rtp
  src: 192.168.1.20
  src_port: 40000
  dst: 192.168.1.10
  dst_port: 30000
  payload: "\x80\x00"
  payload_type: 0
`

func TestLoadParsesMixedEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	packets, err := Load(path)
	require.NoError(t, err)
	require.Len(t, packets, 3)

	invite := packets[0]
	require.NotNil(t, invite.SIP)
	assert.Equal(t, "call-1", invite.SIP.CallID)
	assert.Equal(t, types.MethodInvite, invite.SIP.ReqResp)
	require.NotNil(t, invite.SDP)
	assert.Equal(t, "192.168.1.10", invite.SDP.Medias[0].Address)

	ok := packets[1]
	assert.Equal(t, types.ReqResp(200), ok.SIP.ReqResp)
	assert.True(t, ok.SIP.ReqResp.IsResponse())

	rtp := packets[2]
	require.NotNil(t, rtp.RTP)
	assert.Equal(t, 0, rtp.RTP.PayloadType)

	assert.True(t, packets[1].Timestamp.After(packets[0].Timestamp))
}

func TestLoadRejectsUnknownMethod(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- kind: sip
  src: 10.0.0.1
  dst: 10.0.0.2
  method: NOTAMETHOD
  call_id: call-x
`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
