package subscriber

import (
	"net"
	"net/http"
	"strconv"

	"github.com/johnjansen/tinysse/internal/message"
)

// addrFromRequest resolves the client address, preferring the parsed
// RemoteAddr host:port split and falling back to the raw string if it
// isn't in host:port form.
func addrFromRequest(r *http.Request) message.Address {
	host, portStr, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return message.Address{IP: r.RemoteAddr}
	}
	port, _ := strconv.Atoi(portStr)
	return message.Address{IP: host, Port: port}
}
