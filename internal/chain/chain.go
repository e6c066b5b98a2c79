// Package chain implements the hosting-agnostic interception pipeline.
//
// A Chain is an ordered, immutable list of Handlers. The request phase walks the handlers
// in order and stops at the first one that produces a response. The response phase always
// walks every handler in the same order, including for responses produced by a short-circuit.
// Both forward (MITM) and reverse hosting adapters drive the same Chain.
package chain

import (
	"context"
	"errors"
	"net/http"
)

// ErrInvalidOutcome is returned when a handler reports success but hands back
// neither a request nor a response, so there is nothing to feed the next handler.
var ErrInvalidOutcome = errors.New("handler returned an empty outcome")

// Chain holds a fixed sequence of handlers. Copying a Chain value is cheap and
// shares the underlying handler slice, which is never modified after New.
type Chain struct {
	handlers []Handler
}

// New creates a Chain from the given handlers in order. An empty chain is an identity transform.
func New(handlers ...Handler) Chain {
	hs := make([]Handler, len(handlers))
	copy(hs, handlers)
	return Chain{handlers: hs}
}

// Len returns the number of handlers in the chain.
func (c Chain) Len() int {
	return len(c.handlers)
}

// Names returns the handler names in chain order.
func (c Chain) Names() []string {
	names := make([]string, 0, len(c.handlers))
	for _, h := range c.handlers {
		names = append(names, h.Name())
	}
	return names
}

// ProcessRequest feeds req through each handler's request phase.
// Iteration stops at the first short-circuit response or the first error; the error is
// returned exactly as the handler produced it.
func (c Chain) ProcessRequest(ctx context.Context, req *http.Request) (Outcome, error) {
	current := req
	for _, h := range c.handlers {
		out, err := h.HandleRequest(ctx, current)
		if err != nil {
			return Outcome{}, err
		}
		if out.ShortCircuited() {
			return out, nil
		}
		if out.req == nil {
			return Outcome{}, ErrInvalidOutcome
		}
		current = out.req
	}
	return Pass(current), nil
}

// ProcessResponse feeds resp through every handler's response phase in chain order.
// It runs regardless of how the request phase ended and aborts on the first error.
// A handler returning a nil response without an error yields ErrInvalidOutcome.
func (c Chain) ProcessResponse(ctx context.Context, resp *http.Response) (*http.Response, error) {
	current := resp
	for _, h := range c.handlers {
		next, err := h.HandleResponse(ctx, current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, ErrInvalidOutcome
		}
		current = next
	}
	return current, nil
}
