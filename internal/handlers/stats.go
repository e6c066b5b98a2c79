package handlers

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/victorgomez09/interceptor/internal/chain"
)

// Stats counts transactions with atomic counters.
type Stats struct {
	requests  atomic.Int64
	responses atomic.Int64
	byClass   [6]atomic.Int64 // index = status / 100
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Requests  int64
	Responses int64
	Status2xx int64
	Status3xx int64
	Status4xx int64
	Status5xx int64
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) Name() string {
	return "stats"
}

func (s *Stats) HandleRequest(_ context.Context, req *http.Request) (chain.Outcome, error) {
	s.requests.Add(1)
	return chain.Pass(req), nil
}

func (s *Stats) HandleResponse(_ context.Context, resp *http.Response) (*http.Response, error) {
	s.responses.Add(1)
	if class := resp.StatusCode / 100; class >= 1 && class < len(s.byClass) {
		s.byClass[class].Add(1)
	}
	return resp, nil
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests:  s.requests.Load(),
		Responses: s.responses.Load(),
		Status2xx: s.byClass[2].Load(),
		Status3xx: s.byClass[3].Load(),
		Status4xx: s.byClass[4].Load(),
		Status5xx: s.byClass[5].Load(),
	}
}
