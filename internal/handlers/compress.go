package handlers

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/victorgomez09/interceptor/internal/chain"
)

// Compress gzips response bodies for clients that accept it.
// Place it after cache so stored entries stay uncompressed.
type Compress struct {
	chain.Passthrough
	minSize int64
}

func NewCompress(minSize int64) *Compress {
	return &Compress{minSize: minSize}
}

func (c *Compress) Name() string {
	return "compress"
}

func (c *Compress) HandleResponse(_ context.Context, resp *http.Response) (*http.Response, error) {
	req := resp.Request
	if req == nil || req.Method == http.MethodHead || resp.Body == nil {
		return resp, nil
	}
	if !strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
		return resp, nil
	}
	if resp.Header.Get("Content-Encoding") != "" || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotModified {
		return resp, nil
	}
	if resp.ContentLength >= 0 && resp.ContentLength < c.minSize {
		return resp, nil
	}

	body := resp.Body
	pr, pw := io.Pipe()
	go func() {
		gz := gzip.NewWriter(pw)
		_, err := io.Copy(gz, body)
		if closeErr := gz.Close(); err == nil {
			err = closeErr
		}
		body.Close()
		pw.CloseWithError(err)
	}()

	resp.Body = pr
	resp.ContentLength = -1
	resp.Header.Del("Content-Length")
	resp.Header.Set("Content-Encoding", "gzip")
	resp.Header.Add("Vary", "Accept-Encoding")
	resp.Uncompressed = false
	return resp, nil
}
