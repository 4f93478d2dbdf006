// Package resource resolves references found in markup and stylesheets
// (local paths, http(s) URLs and data URIs) into bytes with mime type.
package resource

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Resource is a resolved reference. A resource which could not be resolved
// has Exists() == false, callers are expected to test and skip.
type Resource struct {
	Ref      string // reference as it was written in the source
	MimeType string

	exists bool
	data   []byte // in-memory payload (data URIs)
	path   string // local file or owned temporary file
	temp   bool
}

func notFound(ref string) *Resource {
	return &Resource{Ref: ref}
}

// Exists reports whether reference was resolved.
func (r *Resource) Exists() bool {
	return r != nil && r.exists
}

// Temporary reports whether resource content lives in a temporary file owned
// by the resolver.
func (r *Resource) Temporary() bool {
	return r != nil && r.temp
}

// Path returns local file system path of the resource content, empty for
// in-memory resources.
func (r *Resource) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Read returns resource content.
func (r *Resource) Read() ([]byte, error) {
	if !r.Exists() {
		return nil, errors.New("resource does not exist")
	}
	if r.data != nil {
		return r.data, nil
	}
	return os.ReadFile(r.path)
}

// Open returns seekable reader over resource content.
func (r *Resource) Open() (io.ReadSeeker, error) {
	data, err := r.Read()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// Ext returns lower case extension (without dot) of the reference, ignoring
// query and fragment parts.
func (r *Resource) Ext() string {
	return refExt(r.Ref)
}

func (r *Resource) String() string {
	if r == nil {
		return "<nil>"
	}
	if strings.HasPrefix(r.Ref, "data:") {
		return "data:" + r.MimeType
	}
	return r.Ref
}

func refExt(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(ref), "."))
}
