package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
)

// FetchEnable returns the Fetch.enable command that pauses every outgoing request
// at the request stage so HandleRequestPaused can observe it.
func FetchEnable() *fetch.EnableParams {
	return fetch.Enable().WithPatterns([]*fetch.RequestPattern{
		{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
	})
}

// HandleRequestPaused observes a request paused by the Chrome DevTools Fetch
// domain and resumes it with Fetch.continueRequest. ctx must carry a cdp.Executor
// for the target the event came from, e.g. chromedp.WithExecutor or
// cdp.WithExecutor. Response-stage pauses are resumed without being recorded.
func (s *Session) HandleRequestPaused(ctx context.Context, ev *fetch.EventRequestPaused) error {
	return s.HandleRequest(ctx, &pausedRequest{ev: ev})
}

type pausedRequest struct {
	ev *fetch.EventRequestPaused
}

func (r *pausedRequest) responseStage() bool {
	return r.ev.ResponseStatusCode != 0 || r.ev.ResponseErrorReason != ""
}

func (r *pausedRequest) URL() string {
	if r.ev.Request == nil || r.responseStage() {
		return ""
	}
	return r.ev.Request.URL
}

// Body joins the post data entries, which the protocol sends base64-encoded.
func (r *pausedRequest) Body() (Body, error) {
	if r.ev.Request == nil {
		return Body{}, nil
	}
	var raw []byte
	for i, entry := range r.ev.Request.PostDataEntries {
		if entry == nil || entry.Bytes == "" {
			continue
		}
		b, err := base64.StdEncoding.DecodeString(entry.Bytes)
		if err != nil {
			return Body{}, fmt.Errorf("post data entry %d: %w", i, err)
		}
		raw = append(raw, b...)
	}
	return Body{Raw: raw}, nil
}

func (r *pausedRequest) ContentEncoding() string {
	if r.ev.Request == nil {
		return ""
	}
	return headerValue(r.ev.Request.Headers, "Content-Encoding")
}

func (r *pausedRequest) Continue(ctx context.Context) error {
	return fetch.ContinueRequest(r.ev.RequestID).Do(ctx)
}

func headerValue(h network.Headers, name string) string {
	for k, v := range h {
		if strings.EqualFold(k, name) {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
