package utils

import (
	"bytes"
	"net/http"
	"unicode/utf8"
)

// sniffLength bounds the bytes inspected when sniffing a MIME type.
const sniffLength = 512

// IsBinary reports whether data looks like binary content: it holds a NUL byte or is not
// valid UTF-8. Empty data is text.
func IsBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data)
}

// DetectMimeTypeBytes sniffs the MIME type of already loaded content.
func DetectMimeTypeBytes(data []byte) string {
	if len(data) > sniffLength {
		data = data[:sniffLength]
	}
	return http.DetectContentType(data)
}
