package protocol

import "strings"

// PathToURI converts an absolute filesystem path into a file URI.
func PathToURI(path string) string {
	return "file://" + path
}

// URIToPath converts a file URI into a filesystem path.
func URIToPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
