// Package output renders bundle documents as raw text, JSON or XML.
package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/temirov/snapctx/internal/types"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	separatorLine = "----------------------------------------"
	xmlHeader     = xml.Header

	binaryContentOmitted = "(binary content omitted)"
	mimeTypeLabel        = "Mime Type: "

	snapshotLabel  = "Snapshot: "
	generatedLabel = "Generated: "
	moduleLabel    = "Module: "
	rootsLabel     = "Roots: "
	filterLabel    = "Filter: "
	fileLabel      = "File: "
	endOfFileLabel = "End of file: "

	unsupportedFormatErrorFormat = "unsupported format %q"
)

// IsSupportedFormat reports whether format names a renderer.
func IsSupportedFormat(format string) bool {
	switch format {
	case types.FormatRaw, types.FormatJSON, types.FormatXML:
		return true
	default:
		return false
	}
}

// Render writes document to writer in the requested format.
func Render(writer io.Writer, document types.Document, format string) error {
	switch format {
	case types.FormatRaw:
		return RenderRaw(writer, document)
	case types.FormatJSON:
		return RenderJSON(writer, document)
	case types.FormatXML:
		return RenderXML(writer, document)
	default:
		return fmt.Errorf(unsupportedFormatErrorFormat, format)
	}
}

// RenderJSON marshals the document as indented JSON.
func RenderJSON(writer io.Writer, document types.Document) error {
	if document.Files == nil {
		document.Files = []types.FileEntry{}
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent(indentPrefix, indentSpacer)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(document)
}

// RenderXML marshals the document as an indented XML document.
func RenderXML(writer io.Writer, document types.Document) error {
	encoded, xmlMarshalError := xml.MarshalIndent(document, indentPrefix, indentSpacer)
	if xmlMarshalError != nil {
		return xmlMarshalError
	}
	if _, writeError := io.WriteString(writer, xmlHeader+string(encoded)+"\n"); writeError != nil {
		return writeError
	}
	return nil
}

// RenderRaw writes the header, the summary line and every file delimited by separator lines.
func RenderRaw(writer io.Writer, document types.Document) error {
	var builder strings.Builder
	header := document.Header
	builder.WriteString(snapshotLabel + header.SnapshotID + "\n")
	builder.WriteString(generatedLabel + header.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	if header.Module != "" {
		builder.WriteString(moduleLabel + header.Module + "\n")
	}
	if len(header.Roots) > 0 {
		builder.WriteString(rootsLabel + strings.Join(header.Roots, ", ") + "\n")
	}
	if header.Filter != nil {
		builder.WriteString(filterLabel + header.Filter.Summary() + "\n")
	}
	builder.WriteString(FormatSummaryLine(document.Summary) + "\n")
	builder.WriteString(separatorLine + "\n")
	if _, writeError := io.WriteString(writer, builder.String()); writeError != nil {
		return writeError
	}

	for _, file := range document.Files {
		if writeError := WriteFileRaw(writer, file); writeError != nil {
			return writeError
		}
	}
	return nil
}

// WriteFileRaw renders a single file entry to the provided writer.
func WriteFileRaw(writer io.Writer, file types.FileEntry) error {
	var builder strings.Builder
	builder.WriteString(fileLabel + file.Path + "\n")
	if file.Type == types.NodeTypeBinary {
		builder.WriteString(mimeTypeLabel + file.MimeType + "\n")
		builder.WriteString(binaryContentOmitted + "\n")
	} else {
		builder.WriteString(file.Content)
		if !strings.HasSuffix(file.Content, "\n") {
			builder.WriteString("\n")
		}
	}
	builder.WriteString(endOfFileLabel + file.Path + "\n")
	builder.WriteString(separatorLine + "\n")
	_, writeError := io.WriteString(writer, builder.String())
	return writeError
}

// FormatSummaryLine formats a BundleSummary into the raw summary line.
func FormatSummaryLine(summary types.BundleSummary) string {
	label := "files"
	if summary.TotalFiles == 1 {
		label = "file"
	}
	extra := ""
	if summary.TotalTokens > 0 {
		extra = fmt.Sprintf(", %d tokens", summary.TotalTokens)
	}
	modelSuffix := ""
	if summary.Model != "" {
		modelSuffix = fmt.Sprintf(" (model: %s)", summary.Model)
	}
	return fmt.Sprintf("Summary: %d %s, %s%s%s", summary.TotalFiles, label, summary.TotalSize, extra, modelSuffix)
}
