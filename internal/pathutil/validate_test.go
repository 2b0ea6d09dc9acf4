package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "dataset", "train"), 0755); err != nil {
		t.Fatal(err)
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		path        string
		roots       []string
		want        string
		errContains string
	}{
		{"existing dir", filepath.Join(root, "dataset", "train"), []string{root}, filepath.Join(realRoot, "dataset", "train"), ""},
		{"not yet created", filepath.Join(root, "new", "test"), []string{root}, filepath.Join(realRoot, "new", "test"), ""},
		{"relative to first root", "dataset/test", []string{root}, filepath.Join(realRoot, "dataset", "test"), ""},
		{"root itself", root, []string{root}, realRoot, ""},
		{"second root", filepath.Join(other, "x"), []string{root, other}, "", ""},
		{"dot-dot escape", filepath.Join(root, "..", "etc"), []string{root}, "", "outside allowed directories"},
		{"relative escape", "../../etc", []string{root}, "", "outside allowed directories"},
		{"other dir", filepath.Join(other, "train"), []string{root}, "", "outside allowed directories"},
		{"prefix sibling", root + "bar", []string{root}, "", "outside allowed directories"},
		{"null byte", filepath.Join(root, "tr\x00ain"), []string{root}, "", "null byte"},
		{"empty", "", []string{root}, "", "empty"},
		{"no roots", root, nil, "", "no allowed directories"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.path, tt.roots)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("Resolve(%q) error = %v, want containing %q", tt.path, err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) unexpected error: %v", tt.path, err)
			}
			if tt.want != "" && got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestResolve_SymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	if err := ValidatePath(filepath.Join(link, "train"), []string{root}); err == nil {
		t.Error("symlink pointing outside the root should be rejected")
	}

	inside := filepath.Join(root, "real")
	if err := os.Mkdir(inside, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(inside, filepath.Join(root, "alias")); err != nil {
		t.Fatal(err)
	}
	if err := ValidatePath(filepath.Join(root, "alias", "train"), []string{root}); err != nil {
		t.Errorf("symlink inside the root should be accepted: %v", err)
	}
}

func TestDatasetRoots(t *testing.T) {
	project := filepath.Join(string(filepath.Separator), "srv", "sim")
	got := DatasetRoots(project, "dataset/train", "", filepath.Join(project, "dataset", "test"), "/mnt/shared/test")

	want := []string{project, "/mnt/shared/test"}
	if len(got) != len(want) {
		t.Fatalf("DatasetRoots() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != filepath.Clean(want[i]) {
			t.Errorf("DatasetRoots()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/home/user/data/train", ".../data/train"},
		{"train", "train"},
		{"/train", "train"},
	}
	for _, tt := range tests {
		if got := RedactPath(tt.in); got != tt.want {
			t.Errorf("RedactPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
