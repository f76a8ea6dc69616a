// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/Query-farm/thriftrpc/thriftrpc/describe"
	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

const defaultHTTPPrefix = "/thrift"

// HTTPServer serves one Thrift message per POST request.
//
//	POST {prefix}           message in, reply out (204 for oneway)
//	GET  {prefix}           HTML landing page
//	GET  {prefix}/api       HTML method reference
//	GET  {prefix}/describe  Arrow IPC describe stream
type HTTPServer struct {
	proc         MessageProcessor
	protoFactory protocol.Factory
	prefix       string
	serviceName  string
	serverID     string
	repoURL      string
	maxBody      int64
	mux          *http.ServeMux
}

// NewHTTPServer returns an HTTP handler for proc mounted at prefix. An empty
// or root prefix selects "/thrift".
func NewHTTPServer(proc MessageProcessor, prefix string) *HTTPServer {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = defaultHTTPPrefix
	}
	h := &HTTPServer{
		proc:         proc,
		protoFactory: protocol.BinaryFactory{},
		prefix:       prefix,
		maxBody:      int64(transport.DefaultMaxFrameSize),
	}
	if p, ok := proc.(interface{ ServerID() string }); ok {
		h.serverID = p.ServerID()
	}
	if svcs := h.services(); len(svcs) > 0 {
		h.serviceName = svcs[0].Name
	}
	h.mux = http.NewServeMux()
	h.mux.HandleFunc(fmt.Sprintf("POST %s", h.prefix), h.handleMessage)
	h.mux.HandleFunc(fmt.Sprintf("GET %s", h.prefix), h.handleLandingPage)
	h.mux.HandleFunc(fmt.Sprintf("GET %s/api", h.prefix), h.handleDescribePage)
	h.mux.HandleFunc(fmt.Sprintf("GET %s/describe", h.prefix), h.handleDescribe)
	h.mux.HandleFunc(fmt.Sprintf("GET %s/", h.prefix), h.handleNotFound)
	return h
}

// SetProtocolFactory sets the protocol used to read requests and write replies.
func (h *HTTPServer) SetProtocolFactory(f protocol.Factory) { h.protoFactory = f }

// SetServiceName sets the name shown on the HTML pages.
func (h *HTTPServer) SetServiceName(name string) { h.serviceName = name }

// SetRepoURL sets a source repository link shown on the HTML pages.
func (h *HTTPServer) SetRepoURL(url string) { h.repoURL = url }

// SetMaxBodySize bounds request bodies.
func (h *HTTPServer) SetMaxBodySize(n int64) { h.maxBody = n }

// Prefix returns the mount path.
func (h *HTTPServer) Prefix() string { return h.prefix }

// ServeHTTP implements http.Handler.
func (h *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *HTTPServer) services() []*ttype.ServiceDescriptor {
	if d, ok := h.proc.(interface {
		Services() []*ttype.ServiceDescriptor
	}); ok {
		return d.Services()
	}
	return nil
}

func (h *HTTPServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	if !acceptedContentType(r.Header.Get("Content-Type")) {
		writeHTTPError(w, http.StatusUnsupportedMediaType,
			fmt.Errorf("unsupported content type: %s", r.Header.Get("Content-Type")))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		writeHTTPError(w, http.StatusBadRequest, err)
		return
	}

	in := transport.NewCounting(transport.NewMemoryBufferWith(body))
	out := transport.NewMemoryBuffer()
	ctx := ContextWithMetadata(r.Context(), requestMetadata(r))
	err = h.proc.Process(ctx, h.protoFactory.GetProtocol(in), h.protoFactory.GetProtocol(transport.NewCounting(out)))
	if err != nil {
		slog.Error("http dispatch error", "err", err)
	}

	if out.Len() == 0 {
		if err != nil {
			writeHTTPError(w, http.StatusBadRequest, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", transport.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Bytes())
}

func (h *HTTPServer) handleDescribe(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := describe.WriteServices(&buf, h.services(), h.serverID); err != nil {
		writeHTTPError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", describe.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func acceptedContentType(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == transport.ContentType || mt == "application/vnd.apache.thrift.binary"
}

// requestMetadata flattens request headers to lowercase keys and adds
// remote_addr.
func requestMetadata(r *http.Request) map[string]string {
	md := make(map[string]string, len(r.Header)+1)
	for k, v := range r.Header {
		if len(v) > 0 {
			md[strings.ToLower(k)] = v[0]
		}
	}
	if r.RemoteAddr != "" {
		md["remote_addr"] = r.RemoteAddr
	}
	return md
}

func writeHTTPError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, err.Error()+"\n")
}
