// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// ContentType is the media type of Thrift messages carried over HTTP.
const ContentType = "application/x-thrift"

// HTTPClient buffers written bytes and POSTs them on Flush. The response
// body becomes the read buffer. It is not safe for concurrent use.
type HTTPClient struct {
	url    string
	client *http.Client
	header http.Header
	ctx    context.Context

	// next holds headers for the next request only.
	next http.Header

	wbuf bytes.Buffer
	rbuf bytes.Reader
}

// NewHTTPClient returns a transport posting to url. A nil client selects
// http.DefaultClient.
func NewHTTPClient(url string, client *http.Client) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{url: url, client: client, header: make(http.Header), next: make(http.Header), ctx: context.Background()}
}

// SetHeader sets a header sent with every request.
func (h *HTTPClient) SetHeader(key, value string) { h.header.Set(key, value) }

// SetRequestHeader sets a header sent with the next request only. It
// overrides a SetHeader value of the same name.
func (h *HTTPClient) SetRequestHeader(key, value string) { h.next.Set(key, value) }

// Header returns the headers sent with every request.
func (h *HTTPClient) Header() http.Header { return h.header }

// SetContext sets the context used for subsequent requests.
func (h *HTTPClient) SetContext(ctx context.Context) { h.ctx = ctx }

func (h *HTTPClient) Open() error  { return nil }
func (h *HTTPClient) IsOpen() bool { return true }
func (h *HTTPClient) Close() error { return nil }

func (h *HTTPClient) Write(p []byte) (int, error) { return h.wbuf.Write(p) }

func (h *HTTPClient) Read(p []byte) (int, error) {
	n, err := h.rbuf.Read(p)
	return n, Wrap(err)
}

func (h *HTTPClient) Flush() error {
	body := append([]byte(nil), h.wbuf.Bytes()...)
	h.wbuf.Reset()
	next := h.next
	h.next = make(http.Header)
	req, err := http.NewRequestWithContext(h.ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Kind: Unknown, Msg: "building request", Err: err}
	}
	for k, v := range h.header {
		req.Header[k] = v
	}
	for k, v := range next {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", ContentType)
	resp, err := h.client.Do(req)
	if err != nil {
		return Wrap(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Wrap(err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return NewError(Unknown, "HTTP %d from %s", resp.StatusCode, h.url)
	}
	h.rbuf.Reset(data)
	return nil
}
