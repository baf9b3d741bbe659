package daemon

import (
	"net"
	"strconv"
	"time"
)

// timeNow is a var, not a direct time.Now call, so tests could swap it if
// ever needed; today it is always time.Now in production use.
var timeNow = time.Now

func itoa(n int) string { return strconv.Itoa(n) }

// splitHostPort extracts the host and port of a UDP source address. addr
// is always a *net.UDPAddr for a net.PacketConn backed by net.ListenUDP.
func splitHostPort(addr net.Addr) (host string, port int) {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.IP.String(), udp.Port
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	p, _ := strconv.Atoi(portStr)
	return host, p
}
