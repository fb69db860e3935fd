package publish

import (
	"mime"
	"net"
	"net/http"
	"strconv"

	"github.com/johnjansen/tinysse/internal/message"
)

// parseMediaType strips parameters (charset, boundary, ...) from a
// Content-Type header, returning just the bare media type in lower case.
func parseMediaType(contentType string) (string, error) {
	if contentType == "" {
		return "", nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return mediaType, err
}

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
