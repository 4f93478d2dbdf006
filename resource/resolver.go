package resource

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"h2p/diag"
)

const userAgent = "h2p/1.0 (compatible; Go)"

// suffixes which are carried over to temporary files of fetched resources.
// Anything else gets no suffix.
var knownSuffixes = map[string]string{
	"css": "text/css",
	"gif": "image/gif",
	"jpg": "image/jpeg",
	"png": "image/png",
}

// FetchOptions controls network access of the resolver.
type FetchOptions struct {
	Enabled bool
	Timeout time.Duration
	// Header is added to every request, User-Agent set here replaces the
	// default one.
	Header http.Header
}

// Resolver resolves references for a single conversion run and owns every
// temporary file it creates. Close must be called when the run ends, it
// removes temporary files exactly once.
type Resolver struct {
	diag   *diag.Log
	log    *zap.Logger
	opts   FetchOptions
	client *http.Client

	prefix string
	temps  []string
	cache  map[string]*Resource
	closed bool
}

// NewResolver creates resolver reporting problems to d. The prefix is used
// when naming temporary files, it is usually derived from the run id.
func NewResolver(d *diag.Log, prefix string, opts FetchOptions, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if prefix == "" {
		prefix = "h2p"
	}
	return &Resolver{
		diag:   d,
		log:    log.Named("resolver"),
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		prefix: prefix,
		cache:  make(map[string]*Resource),
	}
}

// Resolve resolves reference relative to basePath. basePath is a directory
// or a network URL of the source document. Resolution failures are reported
// to diagnostics as warnings and produce resource which does not exist.
func (r *Resolver) Resolve(ctx context.Context, ref, basePath string) *Resource {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return notFound(ref)
	}
	key := basePath + "\x00" + ref
	if res, ok := r.cache[key]; ok {
		return res
	}

	var res *Resource
	switch {
	case strings.HasPrefix(strings.ToLower(ref), "data:"):
		res = r.resolveDataURI(ref)
	case isNetworkURL(ref):
		res = r.fetch(ctx, ref, ref)
	case isNetworkURL(basePath) && !filepath.IsAbs(ref):
		res = r.fetch(ctx, ref, resolveURL(basePath, ref))
	default:
		res = r.resolveLocal(ref, basePath)
	}
	r.cache[key] = res
	return res
}

func (r *Resolver) resolveDataURI(ref string) *Resource {
	header, payload, found := strings.Cut(ref[len("data:"):], ",")
	if !found {
		r.diag.Warn(0, diag.CodeResource, "malformed data URI")
		return notFound(ref)
	}

	mt, isBase64 := header, false
	if before, ok := strings.CutSuffix(header, ";base64"); ok {
		mt, isBase64 = before, true
	}
	if mt == "" {
		mt = "text/plain"
	}

	var data []byte
	if isBase64 {
		var err error
		// producers are sloppy with padding and line breaks
		payload = strings.Map(func(c rune) rune {
			if c == ' ' || c == '\n' || c == '\r' || c == '\t' {
				return -1
			}
			return c
		}, payload)
		if data, err = base64.StdEncoding.DecodeString(payload); err != nil {
			if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); err != nil {
				r.diag.Warn(0, diag.CodeResource, "unable to decode data URI (%s): %v", mt, err)
				return notFound(ref)
			}
		}
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			r.diag.Warn(0, diag.CodeResource, "unable to decode data URI (%s): %v", mt, err)
			return notFound(ref)
		}
		data = []byte(s)
	}

	if mediaType, _, err := mime.ParseMediaType(mt); err == nil {
		mt = mediaType
	}
	return &Resource{Ref: ref, MimeType: mt, exists: true, data: data}
}

func (r *Resolver) fetch(ctx context.Context, ref, target string) *Resource {
	if !r.opts.Enabled {
		r.diag.Warn(0, diag.CodeResource, "network access is disabled, skipping %q", target)
		return notFound(ref)
	}
	if r.closed {
		r.diag.Error(0, diag.CodeResource, "resolver is closed, unable to fetch %q", target)
		return notFound(ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		r.diag.Warn(0, diag.CodeResource, "unable to fetch %q: %v", target, err)
		return notFound(ref)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range r.opts.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.diag.Warn(0, diag.CodeResource, "unable to fetch %q: %v", target, err)
		return notFound(ref)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.diag.Warn(0, diag.CodeResource, "unable to fetch %q: HTTP %d", target, resp.StatusCode)
		return notFound(ref)
	}

	ext := refExt(target)
	suffix := ""
	if _, ok := knownSuffixes[ext]; ok {
		suffix = "." + ext
	}

	f, err := os.CreateTemp("", r.prefix+"-*"+suffix)
	if err != nil {
		r.diag.Error(0, diag.CodeResource, "unable to create temporary file for %q: %v", target, err)
		return notFound(ref)
	}
	name := f.Name()
	_, err = io.Copy(f, resp.Body)
	err = multierr.Append(err, f.Close())
	if err != nil {
		if er := os.Remove(name); er != nil {
			r.log.Warn("Unable to remove partial download", zap.String("file", name), zap.Error(er))
		}
		r.diag.Warn(0, diag.CodeResource, "unable to fetch %q: %v", target, err)
		return notFound(ref)
	}
	r.temps = append(r.temps, name)
	r.log.Debug("Fetched resource", zap.String("url", target), zap.String("file", name))

	mt := contentType(resp.Header.Get("Content-Type"))
	if mt == "" {
		mt = knownSuffixes[ext]
	}
	if mt == "" {
		mt = sniffFile(name)
	}
	if mt == "" {
		// type cannot be established - treat as missing
		r.diag.Warn(0, diag.CodeResource, "unable to determine type of %q", target)
		return notFound(ref)
	}
	return &Resource{Ref: ref, MimeType: mt, exists: true, path: name, temp: true}
}

func (r *Resolver) resolveLocal(ref, basePath string) *Resource {
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Scheme == "file" {
		p = u.Path
	} else if err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		// some other scheme (mailto:, javascript:, ...), single letter
		// schemes are windows drive names
		r.diag.Warn(0, diag.CodeResource, "unsupported reference scheme %q", u.Scheme)
		return notFound(ref)
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	if !filepath.IsAbs(p) && basePath != "" {
		p = filepath.Join(basePath, p)
	}

	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		r.diag.Warn(0, diag.CodeResource, "resource %q not found", ref)
		return notFound(ref)
	}

	mt := mime.TypeByExtension(filepath.Ext(p))
	if sniffed := sniffFile(p); sniffed != "" {
		// content wins over name for binary formats
		mt = sniffed
	}
	if mt == "" {
		mt = "application/octet-stream"
	}
	if mediaType, _, err := mime.ParseMediaType(mt); err == nil {
		mt = mediaType
	}
	return &Resource{Ref: ref, MimeType: mt, exists: true, path: p}
}

// TempFiles returns names of temporary files currently owned by resolver.
func (r *Resolver) TempFiles() []string {
	out := make([]string, len(r.temps))
	copy(out, r.temps)
	return out
}

// Close removes all temporary files. It is safe to call Close more than
// once, files are removed only the first time.
func (r *Resolver) Close() (err error) {
	if r.closed {
		return nil
	}
	r.closed = true
	for _, name := range r.temps {
		if er := os.Remove(name); er != nil && !os.IsNotExist(er) {
			err = multierr.Append(err, fmt.Errorf("unable to remove temporary file: %w", er))
		}
	}
	r.log.Debug("Temporary files released", zap.Int("count", len(r.temps)))
	r.temps = nil
	return err
}

func sniffFile(name string) string {
	f, err := os.Open(name)
	if err != nil {
		return ""
	}
	defer f.Close()

	head := make([]byte, 262)
	n, _ := io.ReadFull(f, head)
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

func contentType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil || mt == "application/octet-stream" {
		return ""
	}
	return mt
}

func isNetworkURL(s string) bool {
	s = strings.ToLower(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
