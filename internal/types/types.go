// Package types defines the cross-package data structures of a snapctx bundle.
package types

import (
	"encoding/xml"
	"time"

	"github.com/temirov/snapctx/internal/changes"
)

const (
	NodeTypeFile   = "file"
	NodeTypeBinary = "binary"

	FormatRaw  = "raw"
	FormatJSON = "json"
	FormatXML  = "xml"
)

// Formats lists the supported bundle formats in display order.
var Formats = []string{FormatRaw, FormatJSON, FormatXML}

// FileEntry is one file captured in a bundle.
type FileEntry struct {
	Path         string `json:"path" xml:"path"`
	RelativePath string `json:"relativePath" xml:"relativePath"`
	Type         string `json:"type" xml:"type"`
	Content      string `json:"content" xml:"content"`
	Size         string `json:"size,omitempty" xml:"size,omitempty"`
	SizeBytes    int64  `json:"-" xml:"-"`
	LastModified string `json:"lastModified,omitempty" xml:"lastModified,omitempty"`
	MimeType     string `json:"mimeType,omitempty" xml:"mimeType,omitempty"`
	Tokens       int    `json:"tokens,omitempty" xml:"tokens,omitempty"`
}

// BundleHeader identifies a snapshot and records how its files were selected.
type BundleHeader struct {
	SnapshotID  string          `json:"snapshotId" xml:"snapshotId"`
	GeneratedAt time.Time       `json:"generatedAt" xml:"generatedAt"`
	Module      string          `json:"module,omitempty" xml:"module,omitempty"`
	Roots       []string        `json:"roots" xml:"roots>root"`
	Filter      *changes.Report `json:"filter,omitempty" xml:"filter,omitempty"`
}

// BundleSummary captures aggregate information about the captured files.
type BundleSummary struct {
	TotalFiles  int    `json:"totalFiles" xml:"totalFiles"`
	TotalSize   string `json:"totalSize" xml:"totalSize"`
	TotalBytes  int64  `json:"-" xml:"-"`
	TotalTokens int    `json:"totalTokens,omitempty" xml:"totalTokens,omitempty"`
	Model       string `json:"model,omitempty" xml:"model,omitempty"`
}

// Document is a complete bundle ready to be rendered.
type Document struct {
	XMLName xml.Name      `json:"-" xml:"bundle"`
	Header  BundleHeader  `json:"header" xml:"header"`
	Files   []FileEntry   `json:"files" xml:"files>file"`
	Summary BundleSummary `json:"summary" xml:"summary"`
}
