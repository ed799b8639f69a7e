package netutil

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/JoseTor101/mom-middleware/pkg/log"
)

// FindFreePort asks the kernel for an unused TCP port.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// LocalIP returns the machine's outbound IPv4 address. No packets are
// sent; the UDP dial only selects a route.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// PublicIP queries an external echo service for the machine's public
// address, falling back to the local IP when unreachable.
func PublicIP() string {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("https://api.ipify.org")
	if err != nil {
		log.WithComponent("netutil").Warn().Err(err).Msg("could not determine public IP, using local IP")
		return LocalIP()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return LocalIP()
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return LocalIP()
	}
	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return LocalIP()
	}
	return ip
}

// RewriteLocalHostname substitutes the IPv4 loopback for addresses hosted
// on this machine's hostname, so callers on the same box do not route out
// and back in.
func RewriteLocalHostname(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	hostname, err := os.Hostname()
	if err != nil {
		return addr
	}
	if host == hostname || host == "localhost" {
		return net.JoinHostPort("127.0.0.1", port)
	}
	return addr
}

// ResolveHairpin replaces the host part of addr with the local IP when it
// equals this machine's public IP. NATed environments often cannot reach
// their own public address from inside.
func ResolveHairpin(addr, publicIP string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == publicIP {
		return net.JoinHostPort(LocalIP(), port)
	}
	return addr
}

// JoinHostPort formats a host and numeric port.
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}
