package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointBound(t *testing.T) {
	assert.False(t, ZeroEndpoint.Bound())
	assert.True(t, NewEndpoint("10.0.0.1", 5060).Bound())
}

func TestEndpointEquality(t *testing.T) {
	a := NewEndpoint("10.0.0.1", 5060)
	b := NewEndpoint("10.0.0.1", 5060)
	c := NewEndpoint("10.0.0.1", 5061)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestEndpointString(t *testing.T) {
	assert.Equal(t, "<unbound>", ZeroEndpoint.String())
	assert.Equal(t, "10.0.0.1:5060", NewEndpoint("10.0.0.1", 5060).String())
}

func TestReqRespIsResponse(t *testing.T) {
	assert.False(t, MethodInvite.IsResponse())
	assert.False(t, MethodPublish.IsResponse())
	assert.True(t, ReqResp(180).IsResponse())
	assert.True(t, ReqResp(486).IsResponse())
}

func TestReqRespBoundary(t *testing.T) {
	assert.LessOrEqual(t, MethodInvite, MethodBoundary)
	assert.LessOrEqual(t, MethodMessage, MethodBoundary)
	assert.Greater(t, MethodUpdate, MethodBoundary)
}

func TestReqRespString(t *testing.T) {
	assert.Equal(t, "INVITE", MethodInvite.String())
	assert.Equal(t, "BYE", MethodBye.String())
	assert.Equal(t, "486", ReqResp(486).String())
}
