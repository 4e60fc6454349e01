package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

// maxRequestLine is the size of the receive buffer. Nothing beyond it is read.
const maxRequestLine = 4096

// errNoRequest means the peer went away before sending anything.
var errNoRequest = errors.New("no request received")

type Request struct {
	Method   string
	RawPath  string
	Protocol string
}

// readRequestLine reads up to the first newline, or up to maxRequestLine
// bytes when the peer stops sending early. The reader must have been created
// with bufio.NewReaderSize(conn, maxRequestLine).
func readRequestLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadSlice('\n')
	switch {
	case err == nil:
		return string(line), nil
	case errors.Is(err, bufio.ErrBufferFull):
		return "", requestError(400, "Request line too long",
			fmt.Errorf("%w: no line terminator in %d bytes", ErrMalformedRequest, len(line)))
	case len(line) == 0:
		// EOF, reset or timeout before the first byte
		return "", fmt.Errorf("%w: %v", errNoRequest, err)
	default:
		// The peer stopped sending mid-line. Work with what arrived.
		return string(line), nil
	}
}

func parseRequest(requestLine string) (Request, error) {
	// Split on any whitespace; the trailing CRLF goes with it
	parts := strings.Fields(requestLine)
	if len(parts) < 3 {
		return Request{}, requestError(400, "Malformed request",
			fmt.Errorf("%w: %d tokens in %q", ErrMalformedRequest, len(parts), requestLine))
	}

	request := Request{
		Method:   parts[0],
		RawPath:  parts[1],
		Protocol: parts[2], // never validated, responses are always HTTP/1.0
	}

	if request.Method != "GET" {
		return request, requestError(501, "Only GET is supported",
			fmt.Errorf("%w: '%s'", ErrUnsupportedMethod, request.Method))
	}

	return request, nil
}
