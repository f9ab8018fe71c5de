package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/snapctx/internal/changes"
	"github.com/temirov/snapctx/internal/tokenizer"
	"github.com/temirov/snapctx/internal/utils"
)

type recordingCopier struct {
	copied []string
	err    error
}

func (copier *recordingCopier) Copy(text string) error {
	if copier.err != nil {
		return copier.err
	}
	copier.copied = append(copier.copied, text)
	return nil
}

type noRepositoryRunner struct{}

func (noRepositoryRunner) Run(context.Context, string, ...string) ([]byte, error) {
	return nil, errors.New("fatal: not a git repository")
}

type wordCounter struct{}

func (wordCounter) Name() string { return "words" }

func (wordCounter) CountString(input string) (int, error) {
	return len(strings.Fields(input)), nil
}

type testHarness struct {
	app              *application
	workingDirectory string
	stdout           *bytes.Buffer
	copier           *recordingCopier
	logs             *observer.ObservedLogs
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	workingDirectory := t.TempDir()
	core, logs := observer.New(zapcore.DebugLevel)
	harness := &testHarness{
		workingDirectory: workingDirectory,
		stdout:           &bytes.Buffer{},
		copier:           &recordingCopier{},
		logs:             logs,
	}
	app := newApplication(zap.New(core))
	app.loggerFactory = nil
	app.stdout = harness.stdout
	app.workingDirectory = func() (string, error) { return workingDirectory, nil }
	app.copier = harness.copier
	app.newCounter = func(tokenizer.Config) (tokenizer.Counter, string, error) {
		return wordCounter{}, "words", nil
	}
	app.gitRunner = func(time.Duration) changes.Runner { return noRepositoryRunner{} }
	harness.app = app
	return harness
}

func (harness *testHarness) run(t *testing.T, arguments ...string) error {
	t.Helper()
	rootCommand := harness.app.rootCommand()
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, arguments))
	return rootCommand.ExecuteContext(context.Background())
}

func (harness *testHarness) writeFile(t *testing.T, relativePath string, content string, modified time.Time) {
	t.Helper()
	path := filepath.Join(harness.workingDirectory, relativePath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", relativePath, err)
	}
	if !modified.IsZero() {
		if err := os.Chtimes(path, modified, modified); err != nil {
			t.Fatalf("chtimes %s: %v", relativePath, err)
		}
	}
}

func (harness *testHarness) contextRootFile(name string) string {
	return filepath.Join(harness.workingDirectory, utils.ContextRootDirectoryName, name)
}

type decodedBundle struct {
	Header struct {
		Filter *struct {
			Description string `json:"description"`
			FirstRun    bool   `json:"firstRun"`
		} `json:"filter"`
	} `json:"header"`
	Files []struct {
		RelativePath string `json:"relativePath"`
		Content      string `json:"content"`
		Tokens       int    `json:"tokens"`
	} `json:"files"`
	Summary struct {
		TotalFiles  int `json:"totalFiles"`
		TotalTokens int `json:"totalTokens"`
	} `json:"summary"`
}

func decodeBundle(t *testing.T, data []byte) decodedBundle {
	t.Helper()
	var document decodedBundle
	if err := json.Unmarshal(data, &document); err != nil {
		t.Fatalf("decode bundle: %v\n%s", err, data)
	}
	return document
}

func bundledPaths(document decodedBundle) []string {
	paths := make([]string, 0, len(document.Files))
	for _, file := range document.Files {
		paths = append(paths, file.RelativePath)
	}
	return paths
}

func TestBundleWritesDefaultOutputAndWatermark(t *testing.T) {
	harness := newTestHarness(t)
	runStartedAt := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	harness.app.now = func() time.Time { return runStartedAt }
	harness.writeFile(t, "main.go", "package main\n", time.Time{})
	harness.writeFile(t, "README.md", "# demo\n", time.Time{})
	if err := os.Mkdir(filepath.Join(harness.workingDirectory, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}

	if err := harness.run(t, "bundle"); err != nil {
		t.Fatalf("bundle failed: %v", err)
	}

	rendered, readError := os.ReadFile(harness.contextRootFile("context.txt"))
	if readError != nil {
		t.Fatalf("read bundle: %v", readError)
	}
	for _, expected := range []string{
		"File: " + filepath.Join(harness.workingDirectory, "main.go"),
		"File: " + filepath.Join(harness.workingDirectory, "README.md"),
		"package main",
	} {
		if !strings.Contains(string(rendered), expected) {
			t.Errorf("bundle missing %q:\n%s", expected, rendered)
		}
	}
	if strings.Contains(string(rendered), ".snapctx") {
		t.Errorf("bundle should not capture the context root:\n%s", rendered)
	}

	watermark, present := changes.NewWatermarkStore(filepath.Join(harness.workingDirectory, utils.ContextRootDirectoryName), nil).Read()
	if !present || !watermark.Equal(runStartedAt) {
		t.Fatalf("watermark = %v (present %v), want %v", watermark, present, runStartedAt)
	}

	gitignore, gitignoreError := os.ReadFile(filepath.Join(harness.workingDirectory, ".gitignore"))
	if gitignoreError != nil {
		t.Fatalf("read .gitignore: %v", gitignoreError)
	}
	if !strings.Contains(string(gitignore), ".snapctx/") {
		t.Fatalf(".gitignore not patched: %q", gitignore)
	}
	if harness.stdout.Len() != 0 {
		t.Fatalf("expected nothing on stdout, got %q", harness.stdout.String())
	}
	if harness.logs.FilterMessage(bundleWrittenMessage).Len() != 1 {
		t.Fatalf("expected one %q log entry", bundleWrittenMessage)
	}
}

func TestBundleChangedCapturesOnlyFilesModifiedSinceLastRun(t *testing.T) {
	harness := newTestHarness(t)
	now := time.Now()
	harness.writeFile(t, "old.go", "package old\n", now.Add(-2*time.Hour))
	harness.writeFile(t, "new.go", "package fresh\n", now.Add(-2*time.Hour))

	if err := harness.run(t, "bundle", "--changed", "--format", "json", "--output", "-"); err != nil {
		t.Fatalf("first bundle failed: %v", err)
	}
	first := decodeBundle(t, harness.stdout.Bytes())
	if first.Header.Filter == nil || !first.Header.Filter.FirstRun {
		t.Fatalf("expected a first run report, got %+v", first.Header.Filter)
	}
	if got := bundledPaths(first); !slices.Equal(got, []string{"new.go", "old.go"}) {
		t.Fatalf("first run paths = %v", got)
	}

	store := changes.NewWatermarkStore(filepath.Join(harness.workingDirectory, utils.ContextRootDirectoryName), nil)
	if err := store.Save(now.Add(-time.Hour)); err != nil {
		t.Fatalf("save watermark: %v", err)
	}
	harness.writeFile(t, "new.go", "package fresh\n\nfunc Added() {}\n", now.Add(-5*time.Minute))
	harness.stdout.Reset()

	if err := harness.run(t, "bundle", "--changed", "--format", "json", "--output", "-"); err != nil {
		t.Fatalf("second bundle failed: %v", err)
	}
	second := decodeBundle(t, harness.stdout.Bytes())
	if got := bundledPaths(second); !slices.Equal(got, []string{"new.go"}) {
		t.Fatalf("second run paths = %v", got)
	}
	if second.Header.Filter == nil || !strings.HasPrefix(second.Header.Filter.Description, "since last run") {
		t.Fatalf("unexpected filter %+v", second.Header.Filter)
	}
	watermark, present := store.Read()
	if !present || watermark.Before(now) {
		t.Fatalf("watermark should advance to the second run start, got %v", watermark)
	}
}

func TestBundleUnparseableSinceIncludesEverything(t *testing.T) {
	harness := newTestHarness(t)
	harness.writeFile(t, "a.go", "package a\n", time.Time{})
	harness.writeFile(t, "b.go", "package b\n", time.Time{})

	if err := harness.run(t, "bundle", "--since", "yesterday-ish", "--format", "json", "-o", "-"); err != nil {
		t.Fatalf("bundle failed: %v", err)
	}
	document := decodeBundle(t, harness.stdout.Bytes())
	if got := bundledPaths(document); !slices.Equal(got, []string{"a.go", "b.go"}) {
		t.Fatalf("paths = %v", got)
	}
	if document.Header.Filter != nil {
		t.Fatalf("expected no filter report, got %+v", document.Header.Filter)
	}
	if harness.logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("yesterday-ish").Len() == 0 {
		t.Fatal("expected a warning naming the unparseable expression")
	}
}

func TestBundleGitDiffWithoutRepositoryFallsBack(t *testing.T) {
	harness := newTestHarness(t)
	harness.writeFile(t, "a.go", "package a\n", time.Time{})

	if err := harness.run(t, "bundle", "--git-diff", "main", "--format", "json", "-o", "-"); err != nil {
		t.Fatalf("bundle failed: %v", err)
	}
	document := decodeBundle(t, harness.stdout.Bytes())
	if got := bundledPaths(document); !slices.Equal(got, []string{"a.go"}) {
		t.Fatalf("paths = %v", got)
	}
	if harness.logs.FilterLevelExact(zapcore.WarnLevel).Len() == 0 {
		t.Fatal("expected a warning about the unavailable git comparison")
	}
}

func TestBundleCopiesAndCountsTokens(t *testing.T) {
	harness := newTestHarness(t)
	harness.writeFile(t, "a.go", "package a\n", time.Time{})

	if err := harness.run(t, "bundle", "--copy", "--tokens", "--format", "json"); err != nil {
		t.Fatalf("bundle failed: %v", err)
	}
	if len(harness.copier.copied) != 1 {
		t.Fatalf("expected one clipboard copy, got %d", len(harness.copier.copied))
	}
	written, readError := os.ReadFile(harness.contextRootFile("context.json"))
	if readError != nil {
		t.Fatalf("read bundle: %v", readError)
	}
	if string(written) != harness.copier.copied[0] {
		t.Fatal("clipboard content differs from the written bundle")
	}
	document := decodeBundle(t, written)
	if document.Summary.TotalTokens != 2 || document.Files[0].Tokens != 2 {
		t.Fatalf("unexpected token counts: summary %d file %d", document.Summary.TotalTokens, document.Files[0].Tokens)
	}
}

func TestBundleCopyFailureKeepsWatermark(t *testing.T) {
	harness := newTestHarness(t)
	harness.copier.err = errors.New("no clipboard")
	harness.writeFile(t, "a.go", "package a\n", time.Time{})

	if err := harness.run(t, "bundle", "--copy"); err == nil {
		t.Fatal("expected the copy failure to be reported")
	}
	if _, err := os.Stat(harness.contextRootFile(utils.WatermarkFileName)); !os.IsNotExist(err) {
		t.Fatalf("watermark must not be recorded after a failed run: %v", err)
	}
}

func TestBundleCopyNoIsNotTreatedAsPath(t *testing.T) {
	harness := newTestHarness(t)
	harness.writeFile(t, "a.go", "package a\n", time.Time{})

	if err := harness.run(t, "bundle", "--copy", "no"); err != nil {
		t.Fatalf("bundle failed: %v", err)
	}
	if len(harness.copier.copied) != 0 {
		t.Fatal("clipboard should not be used with --copy no")
	}
}

func TestBundleUsesConfiguredFormat(t *testing.T) {
	harness := newTestHarness(t)
	harness.writeFile(t, "a.go", "package a\n", time.Time{})
	harness.writeFile(t, ".snapctx/config.yaml", "bundle:\n  format: xml\n", time.Time{})

	if err := harness.run(t, "bundle"); err != nil {
		t.Fatalf("bundle failed: %v", err)
	}
	rendered, readError := os.ReadFile(harness.contextRootFile("context.xml"))
	if readError != nil {
		t.Fatalf("read xml bundle: %v", readError)
	}
	if !strings.Contains(string(rendered), "<bundle>") {
		t.Fatalf("unexpected xml bundle:\n%s", rendered)
	}
}

func TestBundleRejectsUnknownFormat(t *testing.T) {
	harness := newTestHarness(t)
	err := harness.run(t, "bundle", "--format", "yaml")
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Fatalf("expected invalid format error, got %v", err)
	}
}

func TestStatusListsSelectionWithoutWriting(t *testing.T) {
	harness := newTestHarness(t)
	harness.writeFile(t, "cmd/app/main.go", "package main\n", time.Time{})
	harness.writeFile(t, "lib.go", "package lib\n", time.Time{})

	if err := harness.run(t, "status", "--changed"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	expected := "last run: never\n" +
		"first run, all files included: 2 of 2 files\n" +
		"  " + filepath.Join("cmd", "app", "main.go") + "\n" +
		"  lib.go\n"
	if harness.stdout.String() != expected {
		t.Fatalf("status output mismatch\nwant:\n%s\ngot:\n%s", expected, harness.stdout.String())
	}
	if _, err := os.Stat(filepath.Join(harness.workingDirectory, utils.ContextRootDirectoryName)); !os.IsNotExist(err) {
		t.Fatalf("status must not create the context root: %v", err)
	}
}

func TestStatusAliasReportsUnfilteredSelection(t *testing.T) {
	harness := newTestHarness(t)
	harness.writeFile(t, "lib.go", "package lib\n", time.Time{})

	if err := harness.run(t, "s"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(harness.stdout.String(), "all files included: 1 files\n") {
		t.Fatalf("unexpected status output:\n%s", harness.stdout.String())
	}
}

func TestInitWritesConfigurationOnce(t *testing.T) {
	harness := newTestHarness(t)

	if err := harness.run(t, "init"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	configurationPath := harness.contextRootFile(utils.ConfigFileName)
	if _, err := os.Stat(configurationPath); err != nil {
		t.Fatalf("configuration not written: %v", err)
	}
	if !strings.Contains(harness.stdout.String(), configurationPath) {
		t.Fatalf("init output should name the file, got %q", harness.stdout.String())
	}
	if err := harness.run(t, "init"); err == nil {
		t.Fatal("second init without --force should fail")
	}
	if err := harness.run(t, "init", "--force"); err != nil {
		t.Fatalf("init --force failed: %v", err)
	}
}

func TestResetClearsWatermark(t *testing.T) {
	harness := newTestHarness(t)
	store := changes.NewWatermarkStore(filepath.Join(harness.workingDirectory, utils.ContextRootDirectoryName), nil)
	if err := store.Save(time.Now()); err != nil {
		t.Fatalf("save watermark: %v", err)
	}

	if err := harness.run(t, "reset"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, present := store.Read(); present {
		t.Fatal("watermark should be cleared")
	}
	if harness.stdout.String() != "cleared "+store.Path()+"\n" {
		t.Fatalf("unexpected reset output %q", harness.stdout.String())
	}
}

func TestVersionFlag(t *testing.T) {
	harness := newTestHarness(t)
	if err := harness.run(t, "--version"); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(harness.stdout.String(), "snapctx version: ") {
		t.Fatalf("unexpected version output %q", harness.stdout.String())
	}
}

func TestNormalizeBooleanFlagArguments(t *testing.T) {
	rootCommand := newApplication(nil).rootCommand()
	testCases := []struct {
		name      string
		arguments []string
		expected  []string
	}{
		{
			name:      "joins literal",
			arguments: []string{"bundle", "--copy", "no", "src"},
			expected:  []string{"bundle", "--copy=no", "src"},
		},
		{
			name:      "keeps path after boolean",
			arguments: []string{"bundle", "--changed", "src"},
			expected:  []string{"bundle", "--changed", "src"},
		},
		{
			name:      "ignores string flags",
			arguments: []string{"bundle", "--since", "1"},
			expected:  []string{"bundle", "--since", "1"},
		},
		{
			name:      "stops at terminator",
			arguments: []string{"bundle", "--", "--copy", "yes"},
			expected:  []string{"bundle", "--", "--copy", "yes"},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := normalizeBooleanFlagArguments(rootCommand, testCase.arguments)
			if !slices.Equal(got, testCase.expected) {
				t.Fatalf("got %v, want %v", got, testCase.expected)
			}
		})
	}
}

func TestBooleanFlagValueLiterals(t *testing.T) {
	var target bool
	value := &booleanFlagValue{target: &target, flagKey: "copy"}
	for input, expected := range map[string]bool{"yes": true, "OFF": false, "": true, "0": false} {
		if err := value.Set(input); err != nil {
			t.Fatalf("Set(%q): %v", input, err)
		}
		if target != expected {
			t.Fatalf("Set(%q) = %v, want %v", input, target, expected)
		}
	}
	if err := value.Set("maybe"); err == nil {
		t.Fatal("expected an error for an unknown literal")
	}
}
