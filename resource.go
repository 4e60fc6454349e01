package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extensions are matched exactly, so ".PNG" is not ".png".
var contentTypes = map[string]string{
	".html": "text/html",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".css":  "text/css",
	".js":   "application/javascript",
}

// contentType maps everything from the last dot of path onwards to a MIME type.
func contentType(path string) string {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		return "text/plain"
	}
	if t, ok := contentTypes[path[dot:]]; ok {
		return t
	}
	return "application/octet-stream"
}

// resolvePath turns a raw request target into the canonical path of a file
// under documentRoot. Query strings and fragments are dropped first.
func resolvePath(documentRoot, rawPath string) (string, error) {
	path := rawPath
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	// Cheap textual check. The containment test below is what actually holds.
	if strings.Contains(path, "..") {
		return "", requestError(403, "Forbidden path traversal",
			fmt.Errorf("%w: '%s' contains ..", ErrForbidden, path))
	}

	target := documentRoot + path
	if path == "/" {
		// default to index.html
		target = documentRoot + "/index.html"
	}

	canonicalPath, err := canonicalize(target)
	if err != nil {
		return "", requestError(404, "File not found", fmt.Errorf("%w: %v", ErrNotFound, err))
	}

	canonicalRoot, err := canonicalize(documentRoot)
	if err != nil {
		return "", requestError(404, "File not found", fmt.Errorf("%w: document root: %v", ErrNotFound, err))
	}

	if !isWithin(canonicalRoot, canonicalPath) {
		return "", requestError(403, "Forbidden path",
			fmt.Errorf("%w: '%s' is outside '%s'", ErrForbidden, canonicalPath, canonicalRoot))
	}

	return canonicalPath, nil
}

// canonicalize resolves symlinks, "." and ".." and returns an absolute path.
// It fails if any component does not exist.
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(resolved)
}

// isWithin reports whether path is root itself or lies below it. Both must be
// canonical. Comparison is per path segment: /srv/www does not contain /srv/www-evil.
func isWithin(root, path string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

// loadFile reads the whole file into memory. A file that yields fewer bytes
// than its reported size counts as not found.
func loadFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if fileInfo.IsDir() {
		return nil, fmt.Errorf("%w: '%s' is a directory", ErrNotFound, path)
	}

	size := fileInfo.Size()
	if int64(int(size)) != size {
		return nil, fmt.Errorf("%w: '%s' is too large to buffer (%d bytes)", ErrIO, path, size)
	}

	content := make([]byte, size)
	n, err := io.ReadFull(file, content)
	if err != nil {
		return nil, fmt.Errorf("%w: short read of '%s' (%d of %d bytes): %v", ErrNotFound, path, n, size, err)
	}

	return content, nil
}
