// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/Query-farm/thriftrpc/thriftrpc/describe"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// --- HTML templates ---

const fontImports = `<link rel="preconnect" href="https://fonts.googleapis.com">` +
	`<link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>` +
	`<link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;600;700&family=JetBrains+Mono:wght@400;600&display=swap" rel="stylesheet">`

const notFoundHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>404 &mdash; thriftrpc endpoint</title>
<style>
  body { font-family: system-ui, -apple-system, sans-serif; max-width: 600px;
         margin: 60px auto; padding: 0 20px; color: #333; text-align: center; }
  h1 { color: #555; }
  code { background: #f4f4f4; padding: 2px 6px; border-radius: 3px; font-size: 0.95em; }
  p { line-height: 1.6; }
</style>
</head>
<body>
<h1>404 &mdash; Not Found</h1>
<p>This is a <code>thriftrpc</code> service endpoint%s.</p>
<p>Thrift messages are accepted as <code>POST %s</code> with
<code>Content-Type: application/x-thrift</code>.</p>
</body>
</html>`

const landingHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s &mdash; thriftrpc</title>
%s
<style>
  body { font-family: 'Inter', system-ui, -apple-system, sans-serif; max-width: 600px;
         margin: 0 auto; padding: 60px 20px 0; color: #2c2c1e; text-align: center;
         background: #faf8f0; }
  h1 { color: #2d5016; margin-bottom: 8px; font-weight: 700; }
  code { font-family: 'JetBrains Mono', monospace; background: #f0ece0;
          padding: 2px 6px; border-radius: 3px; font-size: 0.9em; color: #2c2c1e; }
  a { color: #2d5016; text-decoration: none; }
  a:hover { color: #4a7c23; }
  p { line-height: 1.7; color: #6b6b5a; }
  .meta { font-size: 0.9em; color: #6b6b5a; }
  ul.methods { list-style: none; padding: 0; }
  ul.methods li { font-family: 'JetBrains Mono', monospace; margin: 4px 0; }
  .links { margin-top: 28px; display: flex; flex-wrap: wrap; justify-content: center; gap: 8px; }
  .links a { display: inline-block; padding: 8px 18px; border-radius: 6px;
              border: 1px solid #4a7c23; color: #2d5016; font-weight: 600;
              font-size: 0.9em; transition: all 0.2s ease; }
  .links a:hover { background: #4a7c23; color: #fff; }
  .links a.primary { background: #2d5016; color: #fff; border-color: #2d5016; }
  footer { margin-top: 48px; padding: 20px 0; border-top: 1px solid #f0ece0;
            color: #6b6b5a; font-size: 0.85em; }
  footer a { color: #2d5016; font-weight: 600; }
</style>
</head>
<body>
<h1>%s</h1>
<p class="meta">Powered by <code>thriftrpc</code> (Go) &middot; server <code>%s</code></p>
<p>This is a Thrift binary protocol endpoint. POST messages to <code>%s</code>.</p>
<ul class="methods">
%s</ul>
<div class="links">
%s</div>
<footer>
  &copy; 2026 &#x1F69C; <a href="https://query.farm">Query.Farm LLC</a>
</footer>
</body>
</html>`

const describeHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s API Reference &mdash; thriftrpc</title>
%s
<style>
  body { font-family: 'Inter', system-ui, -apple-system, sans-serif; max-width: 900px;
         margin: 0 auto; padding: 40px 20px 0; color: #2c2c1e; background: #faf8f0; }
  .header { text-align: center; margin-bottom: 40px; }
  .header h1 { margin-bottom: 4px; color: #2d5016; font-weight: 700; }
  .header .subtitle { color: #6b6b5a; font-size: 1.1em; margin-top: 0; }
  .header .meta { color: #6b6b5a; font-size: 0.9em; }
  .header .meta a { color: #2d5016; font-weight: 600; }
  code { font-family: 'JetBrains Mono', monospace; background: #f0ece0;
          padding: 2px 6px; border-radius: 3px; font-size: 0.85em; color: #2c2c1e; }
  a { color: #2d5016; text-decoration: none; }
  .card { border: 1px solid #f0ece0; border-radius: 8px; padding: 20px;
           margin-bottom: 16px; background: #fff; }
  .card:hover { border-color: #c8a43a; }
  .card-header { display: flex; align-items: center; gap: 10px; margin-bottom: 12px; }
  .method-name { font-family: 'JetBrains Mono', monospace; font-size: 1.1em; font-weight: 600;
                  color: #2d5016; }
  .badge { display: inline-block; padding: 2px 8px; border-radius: 4px;
            font-size: 0.75em; font-weight: 600; text-transform: uppercase;
            letter-spacing: 0.03em; }
  .badge-call { background: #e8f5e0; color: #2d5016; }
  .badge-oneway { background: #e0ecf5; color: #1a4a6b; }
  .badge-service { background: #f5eee0; color: #6b4423; }
  table { width: 100%%; border-collapse: collapse; font-size: 0.9em; }
  th { text-align: left; padding: 8px 10px; background: #f0ece0; color: #2c2c1e;
        font-weight: 600; border-bottom: 2px solid #e0dcd0; }
  td { padding: 8px 10px; border-bottom: 1px solid #f0ece0; }
  .no-params { color: #6b6b5a; font-style: italic; font-size: 0.9em; }
  .section-label { font-size: 0.8em; font-weight: 600; text-transform: uppercase;
                    letter-spacing: 0.05em; color: #6b6b5a; margin-top: 14px;
                    margin-bottom: 6px; }
  footer { text-align: center; margin-top: 48px; padding: 20px 0;
            border-top: 1px solid #f0ece0; color: #6b6b5a; font-size: 0.85em; }
  footer a { color: #2d5016; font-weight: 600; }
</style>
</head>
<body>
<div class="header">
  <h1>%s</h1>
  <p class="subtitle">API Reference</p>
  <p class="meta">Powered by <code>thriftrpc</code> (Go) &middot; server <code>%s</code>
%s</p>
</div>
%s
<footer>
  &copy; 2026 &#x1F69C; <a href="https://query.farm">Query.Farm LLC</a>
</footer>
</body>
</html>`

// --- Page builders ---

func buildNotFoundHTML(prefix, serviceName string) []byte {
	var fragment string
	if serviceName != "" {
		fragment = " serving <strong>" + html.EscapeString(serviceName) + "</strong>"
	}
	return []byte(fmt.Sprintf(notFoundHTMLTemplate, fragment, html.EscapeString(prefix)))
}

func buildLandingHTML(prefix, serviceName, serverID, repoURL string, svcs []*ttype.ServiceDescriptor) []byte {
	var methods strings.Builder
	for _, svc := range svcs {
		for _, m := range svc.AllMethods() {
			fmt.Fprintf(&methods, "<li>%s</li>\n", html.EscapeString(signature(m)))
		}
	}
	var links strings.Builder
	fmt.Fprintf(&links, `<a class="primary" href="%s/api">View service API</a>`+"\n", html.EscapeString(prefix))
	fmt.Fprintf(&links, `<a href="%s/describe">Arrow describe stream</a>`+"\n", html.EscapeString(prefix))
	if repoURL != "" {
		fmt.Fprintf(&links, `<a href="%s">Source repository</a>`+"\n", html.EscapeString(repoURL))
	}
	return []byte(fmt.Sprintf(landingHTMLTemplate,
		html.EscapeString(serviceName), // <title>
		fontImports,
		html.EscapeString(serviceName), // <h1>
		html.EscapeString(serverID),
		html.EscapeString(prefix),
		methods.String(),
		links.String(),
	))
}

func buildDescribeHTML(serviceName, serverID, repoURL string, svcs []*ttype.ServiceDescriptor) []byte {
	var repoLink string
	if repoURL != "" {
		repoLink = fmt.Sprintf(`&middot; <a href="%s">Source repository</a>`, html.EscapeString(repoURL))
	}
	var cards strings.Builder
	for _, svc := range svcs {
		for _, m := range svc.AllMethods() {
			buildMethodCard(&cards, svc, m)
		}
	}
	return []byte(fmt.Sprintf(describeHTMLTemplate,
		html.EscapeString(serviceName), // <title>
		fontImports,
		html.EscapeString(serviceName), // <h1>
		html.EscapeString(serverID),
		repoLink,
		cards.String(),
	))
}

// signature renders m in schema syntax, e.g. "i32 add(1: i32 a, 2: i32 b)".
func signature(m *ttype.MethodSpec) string {
	var b strings.Builder
	if m.Oneway {
		b.WriteString("oneway ")
	}
	b.WriteString(describe.TypeName(m.Return))
	b.WriteString(" ")
	b.WriteString(m.Name)
	b.WriteString("(")
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d: %s %s", p.ID, describe.TypeName(p.Type), p.Name)
	}
	b.WriteString(")")
	return b.String()
}

func buildMethodCard(w *strings.Builder, svc *ttype.ServiceDescriptor, m *ttype.MethodSpec) {
	badgeClass, badgeLabel := "badge-call", "CALL"
	if m.Oneway {
		badgeClass, badgeLabel = "badge-oneway", "ONEWAY"
	}

	w.WriteString(`<div class="card">`)
	w.WriteString(`<div class="card-header">`)
	fmt.Fprintf(w, `<span class="method-name">%s</span>`, html.EscapeString(m.Name))
	fmt.Fprintf(w, `<span class="badge %s">%s</span>`, badgeClass, badgeLabel)
	if m.Service != nil && m.Service != svc {
		fmt.Fprintf(w, `<span class="badge badge-service">from %s</span>`, html.EscapeString(m.Service.Name))
	}
	w.WriteString(`</div>`) // card-header

	if len(m.Params) > 0 {
		w.WriteString(`<div class="section-label">Parameters</div>`)
		w.WriteString(`<table><tr><th>Id</th><th>Name</th><th>Type</th><th>Default</th></tr>`)
		for _, p := range m.Params {
			defaultStr := "&mdash;"
			if p.Default != nil {
				defaultStr = "<code>" + html.EscapeString(fmt.Sprint(ttype.ToNative(p.Default))) + "</code>"
			}
			fmt.Fprintf(w, `<tr><td>%d</td><td><code>%s</code></td><td><code>%s</code></td><td>%s</td></tr>`,
				p.ID,
				html.EscapeString(p.Name),
				html.EscapeString(describe.TypeName(p.Type)),
				defaultStr,
			)
		}
		w.WriteString(`</table>`)
	} else {
		w.WriteString(`<p class="no-params">No parameters</p>`)
	}

	if !m.Void() {
		w.WriteString(`<div class="section-label">Returns</div>`)
		fmt.Fprintf(w, `<p><code>%s</code></p>`, html.EscapeString(describe.TypeName(m.Return)))
	}

	if len(m.Throws) > 0 {
		w.WriteString(`<div class="section-label">Throws</div>`)
		w.WriteString(`<table><tr><th>Id</th><th>Name</th><th>Exception</th></tr>`)
		for _, t := range m.Throws {
			fmt.Fprintf(w, `<tr><td>%d</td><td><code>%s</code></td><td><code>%s</code></td></tr>`,
				t.ID,
				html.EscapeString(t.Name),
				html.EscapeString(describe.TypeName(t.Type)),
			)
		}
		w.WriteString(`</table>`)
	}

	w.WriteString(`</div>`) // card
	w.WriteString("\n")
}

// --- HTTP handlers ---

func (h *HTTPServer) handleLandingPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buildLandingHTML(h.prefix, h.serviceName, h.serverID, h.repoURL, h.services()))
}

func (h *HTTPServer) handleDescribePage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buildDescribeHTML(h.serviceName, h.serverID, h.repoURL, h.services()))
}

func (h *HTTPServer) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(buildNotFoundHTML(h.prefix, h.serviceName))
}
