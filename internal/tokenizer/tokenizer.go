// Package tokenizer estimates token counts for bundle entries.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/temirov/snapctx/internal/utils"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel        = "gpt-4o"
	defaultEncodingName = "cl100k_base"
)

var errNilCounter = errors.New("nil tokenizer counter")

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Config captures tokenizer selection parameters provided by the CLI.
type Config struct {
	Model string
}

var tiktokenModelPrefixes = []string{
	"gpt-",
	"o1",
	"o3",
	"o4",
	"text-embedding",
	"davinci",
	"babbage",
	"code-",
}

// NewCounter returns a Counter for the requested model together with the name the counts
// are attributed to. Models without a dedicated tiktoken encoding are approximated with
// cl100k_base.
func NewCounter(cfg Config) (Counter, string, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	lowerModel := strings.ToLower(model)
	if hasTiktokenEncoding(lowerModel) {
		if encoding, err := tiktoken.EncodingForModel(lowerModel); err == nil && encoding != nil {
			return tiktokenCounter{encoding: encoding, name: lowerModel}, model, nil
		}
	}

	encoding, err := tiktoken.GetEncoding(defaultEncodingName)
	if err != nil {
		return nil, "", fmt.Errorf("initialize default tokenizer: %w", err)
	}
	return tiktokenCounter{encoding: encoding, name: defaultEncodingName}, defaultEncodingName, nil
}

// Count returns the token count of data. Binary data is not counted and reports false.
func Count(counter Counter, data []byte) (int, bool, error) {
	if counter == nil {
		return 0, false, errNilCounter
	}
	if utils.IsBinary(data) {
		return 0, false, nil
	}
	tokens, err := counter.CountString(string(data))
	if err != nil {
		return 0, false, err
	}
	return tokens, true, nil
}

type tiktokenCounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func (counter tiktokenCounter) Name() string {
	return counter.name
}

func (counter tiktokenCounter) CountString(input string) (int, error) {
	if counter.encoding == nil {
		return 0, errors.New("nil tiktoken encoding")
	}
	return len(counter.encoding.Encode(input, nil, nil)), nil
}

func hasTiktokenEncoding(model string) bool {
	for _, prefix := range tiktokenModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
