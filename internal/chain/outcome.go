package chain

import "net/http"

// Outcome is the result of a request phase: either a (possibly modified) request that
// continues down the chain, or a response that ends the request phase early.
// The zero value is invalid; use Pass or Respond.
type Outcome struct {
	req  *http.Request
	resp *http.Response
}

// Pass continues the chain with req.
func Pass(req *http.Request) Outcome {
	return Outcome{req: req}
}

// Respond short-circuits the request phase with resp.
func Respond(resp *http.Response) Outcome {
	return Outcome{resp: resp}
}

// ShortCircuited reports whether the outcome carries a response.
func (o Outcome) ShortCircuited() bool {
	return o.resp != nil
}

// Request returns the request to forward, or nil when short-circuited.
func (o Outcome) Request() *http.Request {
	return o.req
}

// Response returns the short-circuit response, or nil when the request passes.
func (o Outcome) Response() *http.Response {
	return o.resp
}
