// Package bundle assembles the selected files into a snapshot document and writes it out.
package bundle

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/snapctx/internal/changes"
	"github.com/temirov/snapctx/internal/tokenizer"
	"github.com/temirov/snapctx/internal/types"
	"github.com/temirov/snapctx/internal/utils"
)

const (
	warningFileRead   = "skipping unreadable file"
	warningTokenCount = "failed to count tokens"
)

// BuildOptions configures Build.
type BuildOptions struct {
	// Paths are the absolute paths of the files to capture, in output order.
	Paths            []string
	Roots            []string
	WorkingDirectory string
	Filter           *changes.Report
	// TokenCounter enables per-file token counts when set.
	TokenCounter tokenizer.Counter
	TokenModel   string
	// Concurrency bounds parallel file reads; zero uses GOMAXPROCS.
	Concurrency int
	Logger      *zap.Logger
	Now         func() time.Time
}

// Build reads every path concurrently and returns the assembled document.
// Files that cannot be read are logged and skipped. Output order follows Paths.
func Build(ctx context.Context, options BuildOptions) (types.Document, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	entries := make([]*types.FileEntry, len(options.Paths))
	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for index, path := range options.Paths {
		group.Go(func() error {
			if contextError := groupContext.Err(); contextError != nil {
				return contextError
			}
			entries[index] = inspectFile(path, options, logger)
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return types.Document{}, fmt.Errorf("assembling bundle: %w", waitError)
	}

	document := types.Document{
		Header: types.BundleHeader{
			SnapshotID:  uuid.NewString(),
			GeneratedAt: now().UTC(),
			Module:      DetectModulePath(options.WorkingDirectory),
			Roots:       options.Roots,
			Filter:      options.Filter,
		},
		Files: make([]types.FileEntry, 0, len(entries)),
	}
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		document.Files = append(document.Files, *entry)
		document.Summary.TotalFiles++
		document.Summary.TotalBytes += entry.SizeBytes
		document.Summary.TotalTokens += entry.Tokens
	}
	document.Summary.TotalSize = utils.FormatFileSize(document.Summary.TotalBytes)
	if document.Summary.TotalTokens > 0 {
		document.Summary.Model = options.TokenModel
	}
	return document, nil
}

// inspectFile reads one file. It returns nil when the file cannot be read.
//
// #nosec G304
func inspectFile(path string, options BuildOptions, logger *zap.Logger) *types.FileEntry {
	fileInfo, statError := os.Stat(path)
	if statError != nil {
		logger.Warn(warningFileRead, zap.String("path", path), zap.Error(statError))
		return nil
	}
	fileBytes, readError := os.ReadFile(path)
	if readError != nil {
		logger.Warn(warningFileRead, zap.String("path", path), zap.Error(readError))
		return nil
	}

	entry := &types.FileEntry{
		Path:         path,
		RelativePath: utils.RelativePathOrSelf(path, options.WorkingDirectory),
		Type:         types.NodeTypeFile,
		Size:         utils.FormatFileSize(fileInfo.Size()),
		SizeBytes:    fileInfo.Size(),
		LastModified: utils.FormatTimestamp(fileInfo.ModTime()),
	}
	if utils.IsBinary(fileBytes) {
		entry.Type = types.NodeTypeBinary
		entry.MimeType = utils.DetectMimeTypeBytes(fileBytes)
		return entry
	}
	entry.Content = string(fileBytes)

	if options.TokenCounter != nil {
		tokens, counted, tokenError := tokenizer.Count(options.TokenCounter, fileBytes)
		if tokenError != nil {
			logger.Warn(warningTokenCount, zap.String("path", path), zap.Error(tokenError))
		} else if counted {
			entry.Tokens = tokens
		}
	}
	return entry
}
