package main

import (
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/valyala/bytebufferpool"
)

// Only these codes get their own reason phrase. Everything else, 501
// included, is sent as "Error".
var statusText = map[int]string{
	200: "OK",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	500: "Internal Server Error",
}

func reasonPhrase(status int) string {
	if text, ok := statusText[status]; ok {
		return text
	}
	return "Error"
}

type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// errorResponse builds a response with a {"error": "<message>"} body.
func errorResponse(status int, message string) Response {
	quoted, err := json.Marshal(message)
	if err != nil {
		quoted = []byte(`"` + reasonPhrase(status) + `"`)
	}

	body := make([]byte, 0, len(quoted)+len(`{"error": }`))
	body = append(body, `{"error": `...)
	body = append(body, quoted...)
	body = append(body, '}')

	return Response{
		Status:      status,
		ContentType: "application/json",
		Body:        body,
	}
}

// appendHeader appends the status line and header section, terminated by
// an empty line.
func appendHeader(dst []byte, response Response) []byte {
	dst = append(dst, "HTTP/1.0 "...)
	dst = strconv.AppendInt(dst, int64(response.Status), 10)
	dst = append(dst, ' ')
	dst = append(dst, reasonPhrase(response.Status)...)
	dst = append(dst, "\r\nContent-Type: "...)
	dst = append(dst, response.ContentType...)
	dst = append(dst, "\r\nContent-Length: "...)
	dst = strconv.AppendInt(dst, int64(len(response.Body)), 10)
	dst = append(dst, "\r\n\r\n"...)
	return dst
}

// writeResponse sends the header and then the body, if any, as two writes.
// On failure the returned count tells how much reached the writer; nothing is
// retried and no second response is attempted.
func writeResponse(w io.Writer, response Response) (int64, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.B = appendHeader(buf.B, response)

	written, err := writeFull(w, buf.B)
	if err != nil {
		return int64(written), fmt.Errorf("%w: writing header: %v", ErrSendFailure, err)
	}

	if len(response.Body) == 0 {
		return int64(written), nil
	}

	n, err := writeFull(w, response.Body)
	total := int64(written + n)
	if err != nil {
		return total, fmt.Errorf("%w: writing body (%d of %d bytes): %v", ErrSendFailure, n, len(response.Body), err)
	}
	return total, nil
}

// writeFull keeps writing until p is exhausted or the writer fails.
func writeFull(w io.Writer, p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := w.Write(p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}
