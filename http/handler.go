package http

import (
	"errors"
	"html/template"
	"log/slog"
	nethttp "net/http"
	"path"
	"strings"

	"github.com/meigma/asar"
)

// Handler serves the files of an archive.
//
// The request path, minus any configured prefix, names a path inside the
// archive. Symlinks are followed. Missing paths and directories answer 404
// unless directory listings are enabled; any other failure answers 500.
// Range and conditional requests are handled by net/http.ServeContent.
type Handler struct {
	archive  *asar.Archive
	prefix   string
	headers  nethttp.Header
	listDirs bool
	logger   *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHeader adds a header to every successful response.
func WithHeader(key, value string) HandlerOption {
	return func(h *Handler) {
		h.headers.Add(key, value)
	}
}

// WithPrefix strips prefix from request paths before lookup.
func WithPrefix(prefix string) HandlerOption {
	return func(h *Handler) {
		h.prefix = prefix
	}
}

// WithDirectoryListing enables HTML listings for directories.
func WithDirectoryListing(enabled bool) HandlerOption {
	return func(h *Handler) {
		h.listDirs = enabled
	}
}

// WithLogger sets the logger for request failures.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler returns a Handler serving archive.
func NewHandler(archive *asar.Archive, opts ...HandlerOption) *Handler {
	h := &Handler{archive: archive, headers: make(nethttp.Header)}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	return h
}

// ServeHTTP implements net/http.Handler.
func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodGet && r.Method != nethttp.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		nethttp.Error(w, nethttp.StatusText(nethttp.StatusMethodNotAllowed), nethttp.StatusMethodNotAllowed)
		return
	}
	rest, ok := strings.CutPrefix(r.URL.Path, h.prefix)
	if !ok {
		nethttp.NotFound(w, r)
		return
	}
	name := strings.Trim(path.Clean("/"+rest), "/")

	f, _, err := h.archive.OpenFile(name)
	switch {
	case err == nil:
	case errors.Is(err, asar.ErrIsDir) && h.listDirs:
		h.serveDir(w, r, name)
		return
	case errors.Is(err, asar.ErrNotFound):
		nethttp.NotFound(w, r)
		return
	default:
		h.fail(w, r, name, err)
		return
	}
	defer f.Close()

	h.setHeaders(w)
	nethttp.ServeContent(w, r, path.Base("/"+name), h.archive.ModTime(), f)
}

func (h *Handler) serveDir(w nethttp.ResponseWriter, r *nethttp.Request, name string) {
	names, err := h.archive.Readdir(name)
	if err != nil {
		h.fail(w, r, name, err)
		return
	}
	if !strings.HasSuffix(r.URL.Path, "/") {
		nethttp.Redirect(w, r, r.URL.Path+"/", nethttp.StatusMovedPermanently)
		return
	}

	entries := make([]listingEntry, 0, len(names))
	for _, n := range names {
		child := n
		if name != "" {
			child = name + "/" + n
		}
		href := n
		// Malformed entries are still listed; fetching them reports the error.
		if st, err := h.archive.Stat(child); err == nil && st.IsDirectory {
			href += "/"
		}
		entries = append(entries, listingEntry{Name: href, Href: href})
	}

	h.setHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == nethttp.MethodHead {
		return
	}
	if err := listingTemplate.Execute(w, listing{Path: "/" + name, Entries: entries}); err != nil {
		h.logger.Warn("failed to render listing", "path", name, "error", err)
	}
}

func (h *Handler) setHeaders(w nethttp.ResponseWriter) {
	for key, values := range h.headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
}

func (h *Handler) fail(w nethttp.ResponseWriter, r *nethttp.Request, name string, err error) {
	h.logger.Error("failed to serve archive path",
		"archive", h.archive.Path(), "path", name, "url", r.URL.Path, "error", err)
	nethttp.Error(w, nethttp.StatusText(nethttp.StatusInternalServerError), nethttp.StatusInternalServerError)
}

type listing struct {
	Path    string
	Entries []listingEntry
}

type listingEntry struct {
	Name string
	Href string
}

var listingTemplate = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Path}}</title></head>
<body><h1>{{.Path}}</h1><ul>
{{range .Entries}}<li><a href="{{.Href}}">{{.Name}}</a></li>
{{end}}</ul></body></html>
`))
