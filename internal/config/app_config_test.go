package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/temirov/snapctx/internal/utils"
)

type configTestCase struct {
	name             string
	globalContent    string
	localContent     string
	explicitPath     string
	explicitContent  string
	expectFormat     string
	expectOutput     string
	expectTokens     *bool
	expectModel      string
	expectClipboard  *bool
	expectExclude    []string
	expectGitTimeout time.Duration
	expectPatch      *bool
}

func boolPointer(value bool) *bool {
	pointer := value
	return &pointer
}

func TestLoadApplicationConfigurationMergesSources(t *testing.T) {
	testCases := []configTestCase{
		{
			name:             "local_overrides_global",
			globalContent:    "bundle:\n  format: raw\n  clipboard: true\n  paths:\n    exclude: [dist/]\nchanges:\n  git_timeout: 10s\n",
			localContent:     "bundle:\n  format: xml\n  clipboard: false\n  tokens:\n    enabled: true\n    model: custom\n  paths:\n    exclude: [tmp/, tmp/]\n",
			expectFormat:     "xml",
			expectTokens:     boolPointer(true),
			expectModel:      "custom",
			expectClipboard:  boolPointer(false),
			expectExclude:    []string{"tmp/"},
			expectGitTimeout: 10 * time.Second,
		},
		{
			name:            "explicit_path_replaces_local",
			globalContent:   "bundle:\n  format: json\n",
			localContent:    "bundle:\n  format: xml\n",
			explicitPath:    "custom.yaml",
			explicitContent: "bundle:\n  output: \"-\"\nchanges:\n  patch_gitignore: false\n",
			expectFormat:    "json",
			expectOutput:    "-",
			expectPatch:     boolPointer(false),
		},
		{
			name:             "global_only",
			globalContent:    "changes:\n  git_timeout: 2m\n  patch_gitignore: true\n",
			expectGitTimeout: 2 * time.Minute,
			expectPatch:      boolPointer(true),
		},
		{
			name: "no_files",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			homeDir := t.TempDir()
			workingDir := t.TempDir()
			if testCase.globalContent != "" {
				globalPath := GlobalConfigurationPath(homeDir)
				if err := os.MkdirAll(filepath.Dir(globalPath), 0o755); err != nil {
					t.Fatalf("create config dir: %v", err)
				}
				if err := os.WriteFile(globalPath, []byte(testCase.globalContent), 0o600); err != nil {
					t.Fatalf("write global config: %v", err)
				}
			}
			if testCase.localContent != "" {
				if _, err := EnsureContextRoot(workingDir); err != nil {
					t.Fatalf("create context root: %v", err)
				}
				if err := os.WriteFile(LocalConfigurationPath(workingDir), []byte(testCase.localContent), 0o600); err != nil {
					t.Fatalf("write local config: %v", err)
				}
			}
			if testCase.explicitPath != "" {
				target := filepath.Join(workingDir, testCase.explicitPath)
				if err := os.WriteFile(target, []byte(testCase.explicitContent), 0o600); err != nil {
					t.Fatalf("write explicit config: %v", err)
				}
			}

			t.Setenv("HOME", homeDir)
			t.Setenv("USERPROFILE", homeDir)

			loadedConfig, err := LoadApplicationConfiguration(LoadOptions{
				WorkingDirectory: workingDir,
				ExplicitFilePath: testCase.explicitPath,
			})
			if err != nil {
				t.Fatalf("LoadApplicationConfiguration error: %v", err)
			}

			bundleConfig := loadedConfig.Bundle
			if bundleConfig.Format != testCase.expectFormat {
				t.Fatalf("expected format %q, got %q", testCase.expectFormat, bundleConfig.Format)
			}
			if bundleConfig.Output != testCase.expectOutput {
				t.Fatalf("expected output %q, got %q", testCase.expectOutput, bundleConfig.Output)
			}
			assertBoolPointer(t, "tokens.enabled", bundleConfig.Tokens.Enabled, testCase.expectTokens)
			assertBoolPointer(t, "clipboard", bundleConfig.Clipboard, testCase.expectClipboard)
			assertBoolPointer(t, "patch_gitignore", loadedConfig.Changes.PatchGitignore, testCase.expectPatch)
			if bundleConfig.Tokens.Model != testCase.expectModel {
				t.Fatalf("expected model %q, got %q", testCase.expectModel, bundleConfig.Tokens.Model)
			}
			if len(testCase.expectExclude) > 0 && !slices.Equal(bundleConfig.Paths.Exclude, testCase.expectExclude) {
				t.Fatalf("expected exclude %v, got %v", testCase.expectExclude, bundleConfig.Paths.Exclude)
			}
			if loadedConfig.Changes.GitTimeout != testCase.expectGitTimeout {
				t.Fatalf("expected git timeout %s, got %s", testCase.expectGitTimeout, loadedConfig.Changes.GitTimeout)
			}
		})
	}
}

func assertBoolPointer(t *testing.T, label string, actual *bool, expected *bool) {
	t.Helper()
	if expected == nil {
		if actual != nil {
			t.Fatalf("expected no %s override, got %v", label, *actual)
		}
		return
	}
	if actual == nil || *actual != *expected {
		t.Fatalf("unexpected %s value", label)
	}
}

func TestLoadApplicationConfigurationRejectsInvalidFiles(t *testing.T) {
	workingDir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", os.Getenv("HOME"))

	directoryPath := filepath.Join(workingDir, "as-directory.yaml")
	if err := os.Mkdir(directoryPath, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDir, ExplicitFilePath: directoryPath}); err == nil {
		t.Fatalf("expected an error for a directory path")
	}

	malformedPath := filepath.Join(workingDir, "malformed.yaml")
	if err := os.WriteFile(malformedPath, []byte("bundle: [unterminated\n"), 0o600); err != nil {
		t.Fatalf("write malformed config: %v", err)
	}
	if _, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDir, ExplicitFilePath: malformedPath}); err == nil {
		t.Fatalf("expected an error for malformed YAML")
	}
}

func TestMergeKeepsUnsetValues(t *testing.T) {
	base := ApplicationConfiguration{
		Bundle:  BundleConfiguration{Format: "json", Paths: PathConfiguration{Extensions: []string{"go"}, UseGitignore: boolPointer(false)}},
		Changes: ChangesConfiguration{GitTimeout: time.Second},
	}
	merged := base.Merge(ApplicationConfiguration{Bundle: BundleConfiguration{Paths: PathConfiguration{Include: []string{"cmd/**"}}}})
	if merged.Bundle.Format != "json" || merged.Changes.GitTimeout != time.Second {
		t.Fatalf("expected base values to survive, got %+v", merged)
	}
	if !slices.Equal(merged.Bundle.Paths.Extensions, []string{"go"}) || !slices.Equal(merged.Bundle.Paths.Include, []string{"cmd/**"}) {
		t.Fatalf("unexpected path configuration %+v", merged.Bundle.Paths)
	}
	if BoolValue(merged.Bundle.Paths.UseGitignore, true) {
		t.Fatalf("expected use_gitignore override to survive")
	}
}

func TestContextRootPath(t *testing.T) {
	if ContextRootPath("/work") != filepath.Join("/work", utils.ContextRootDirectoryName) {
		t.Fatalf("unexpected context root %s", ContextRootPath("/work"))
	}
}
