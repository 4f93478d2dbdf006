package convert

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/maruel/natural"
)

var documentExts = map[string]bool{
	".html":  true,
	".htm":   true,
	".xhtml": true,
}

// isDocumentName reports whether name looks like HTML document.
func isDocumentName(name string) bool {
	return documentExts[strings.ToLower(filepath.Ext(name))]
}

// isArchiveFile checks file signature, files are considered archives only
// when they have .zip extension and zip content.
func isArchiveFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}

	// filetype needs at most 262 bytes to match
	head := make([]byte, 262)
	n, _ := f.Read(head)
	return filetype.Is(head[:n], "zip"), nil
}

func naturalCompare(a, b string) int {
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	}
	return 0
}
