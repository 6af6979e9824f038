package capture

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// Transport is an http.RoundTripper that records analytics requests sent through
// it into Session before forwarding them to Base unchanged.
//
//	client := &http.Client{Transport: capture.NewTransport(session, nil)}
type Transport struct {
	Session *Session
	// Base performs the request. http.DefaultTransport is used when nil.
	Base http.RoundTripper
}

// NewTransport wraps base so that requests are observed by s.
func NewTransport(s *Session, base http.RoundTripper) *Transport {
	return &Transport{Session: s, Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		b, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		body = b
		req = req.Clone(req.Context())
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}

	hr := &httpRequest{req: req, body: body, base: base}
	if err := t.Session.HandleRequest(req.Context(), hr); err != nil {
		return nil, err
	}
	return hr.resp, nil
}

type httpRequest struct {
	req  *http.Request
	body []byte
	base http.RoundTripper
	resp *http.Response
}

func (r *httpRequest) URL() string {
	return r.req.URL.String()
}

func (r *httpRequest) Body() (Body, error) {
	return Body{Raw: r.body}, nil
}

func (r *httpRequest) ContentEncoding() string {
	return r.req.Header.Get("Content-Encoding")
}

func (r *httpRequest) Continue(_ context.Context) error {
	resp, err := r.base.RoundTrip(r.req)
	if err != nil {
		return err
	}
	r.resp = resp
	return nil
}
