package chain

import (
	"context"
	"net/http"
)

// Handler defines the interface that every interception handler must implement.
// A single Handler instance is shared by all in-flight transactions, so any internal
// state (counters, caches, limiters) must be synchronized by the handler itself.
type Handler interface {
	// HandleRequest inspects the request before it is sent to the origin.
	// It returns Pass to continue the chain or Respond to stop the request phase.
	HandleRequest(ctx context.Context, req *http.Request) (Outcome, error)

	// HandleResponse inspects the response before it is handed back to the client.
	HandleResponse(ctx context.Context, resp *http.Response) (*http.Response, error)

	// Name identifies the handler in logs.
	Name() string
}

// Passthrough is an identity handler. It can be embedded by handlers that only
// care about one of the two phases.
type Passthrough struct{}

func (Passthrough) HandleRequest(_ context.Context, req *http.Request) (Outcome, error) {
	return Pass(req), nil
}

func (Passthrough) HandleResponse(_ context.Context, resp *http.Response) (*http.Response, error) {
	return resp, nil
}

func (Passthrough) Name() string {
	return "passthrough"
}
