package handlers

import (
	"context"
	"net/http"

	"github.com/victorgomez09/interceptor/internal/chain"
	"github.com/victorgomez09/interceptor/pkg/trace"
)

// RequestID tags each transaction with an id. An id sent by the client is kept,
// otherwise a new UUID is generated. The id is forwarded upstream, stored in the
// request context and echoed on the response.
type RequestID struct {
	header string
}

func NewRequestID(header string) *RequestID {
	if header == "" {
		header = trace.DefaultHeader
	}
	return &RequestID{header: http.CanonicalHeaderKey(header)}
}

func (r *RequestID) Name() string {
	return "request_id"
}

func (r *RequestID) HandleRequest(_ context.Context, req *http.Request) (chain.Outcome, error) {
	id := req.Header.Get(r.header)
	if id == "" {
		id = trace.NewRequestID()
		req.Header.Set(r.header, id)
	}
	return chain.Pass(req.WithContext(trace.WithRequestID(req.Context(), id))), nil
}

func (r *RequestID) HandleResponse(_ context.Context, resp *http.Response) (*http.Response, error) {
	if resp.Request == nil {
		return resp, nil
	}
	if id := trace.GetRequestID(resp.Request.Context()); id != "" {
		resp.Header.Set(r.header, id)
	}
	return resp, nil
}
