package chain

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

// NewResponse builds an in-memory response for req, typically used to short-circuit.
// The response keeps a reference to req so response-phase handlers can read
// request-scoped values from req.Context().
func NewResponse(req *http.Request, status int, contentType string, body []byte) *http.Response {
	resp := &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return resp
}
