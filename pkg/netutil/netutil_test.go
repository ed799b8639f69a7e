package netutil

import (
	"fmt"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	require.NoError(t, err)
	assert.Greater(t, port, 0)

	// The returned port is actually bindable.
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	require.NoError(t, err)
	l.Close()
}

func TestLocalIP(t *testing.T) {
	ip := LocalIP()
	assert.NotNil(t, net.ParseIP(ip))
}

func TestRewriteLocalHostname(t *testing.T) {
	hostname, err := os.Hostname()
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "localhost is rewritten",
			input: "localhost:5000",
			want:  "127.0.0.1:5000",
		},
		{
			name:  "own hostname is rewritten",
			input: hostname + ":5000",
			want:  "127.0.0.1:5000",
		},
		{
			name:  "foreign host untouched",
			input: "10.0.0.9:5000",
			want:  "10.0.0.9:5000",
		},
		{
			name:  "address without port untouched",
			input: "localhost",
			want:  "localhost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteLocalHostname(tt.input))
		})
	}
}

func TestResolveHairpin(t *testing.T) {
	rewritten := ResolveHairpin("203.0.113.7:5000", "203.0.113.7")
	host, port, err := net.SplitHostPort(rewritten)
	require.NoError(t, err)
	assert.Equal(t, "5000", port)
	assert.NotEqual(t, "203.0.113.7", host, "own public IP must be replaced with the local one")

	assert.Equal(t, "198.51.100.1:5000", ResolveHairpin("198.51.100.1:5000", "203.0.113.7"))
	assert.Equal(t, "not-an-address", ResolveHairpin("not-an-address", "203.0.113.7"))
}

func TestJoinHostPort(t *testing.T) {
	assert.Equal(t, "10.0.0.1:5000", JoinHostPort("10.0.0.1", 5000))
}
