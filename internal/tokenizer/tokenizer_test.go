package tokenizer

import (
	"errors"
	"testing"
)

type runeCounter struct{}

func (runeCounter) Name() string { return "runes" }

func (runeCounter) CountString(input string) (int, error) { return len([]rune(input)), nil }

type failingCounter struct{}

func (failingCounter) Name() string { return "failing" }

func (failingCounter) CountString(string) (int, error) { return 0, errors.New("encoder unavailable") }

func TestCount(t *testing.T) {
	testCases := []struct {
		name          string
		data          []byte
		expectCounted bool
		expectTokens  int
	}{
		{name: "text", data: []byte("héllo"), expectCounted: true, expectTokens: 5},
		{name: "empty", data: nil, expectCounted: true, expectTokens: 0},
		{name: "binary", data: []byte{0x00, 0x01, 0x02}, expectCounted: false},
		{name: "invalid utf8", data: []byte{'a', 0xff, 'b'}, expectCounted: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			tokens, counted, err := Count(runeCounter{}, testCase.data)
			if err != nil {
				t.Fatalf("Count error: %v", err)
			}
			if counted != testCase.expectCounted {
				t.Fatalf("expected counted=%v, got %v", testCase.expectCounted, counted)
			}
			if tokens != testCase.expectTokens {
				t.Fatalf("expected %d tokens, got %d", testCase.expectTokens, tokens)
			}
		})
	}
}

func TestCountErrors(t *testing.T) {
	if _, _, err := Count(nil, []byte("x")); !errors.Is(err, errNilCounter) {
		t.Fatalf("expected errNilCounter, got %v", err)
	}
	if _, counted, err := Count(failingCounter{}, []byte("x")); err == nil || counted {
		t.Fatalf("expected the counter error to surface, got counted=%v err=%v", counted, err)
	}
}

func TestHasTiktokenEncoding(t *testing.T) {
	testCases := map[string]bool{
		"gpt-4o":                 true,
		"o3-mini":                true,
		"text-embedding-3-small": true,
		"claude-3-5-sonnet":      false,
		"llama-3":                false,
	}
	for model, expected := range testCases {
		if hasTiktokenEncoding(model) != expected {
			t.Fatalf("hasTiktokenEncoding(%q) = %v, want %v", model, !expected, expected)
		}
	}
}
