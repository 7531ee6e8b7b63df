package fsops

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRealFS_ValidateIdentifier(t *testing.T) {
	fs := &RealFS{}

	tests := []struct {
		name      string
		id        string
		wantError bool
	}{
		{
			name:      "valid feature class name",
			id:        "species_richness",
			wantError: false,
		},
		{
			name:      "valid prefixed output name",
			id:        "T_forest",
			wantError: false,
		},
		{
			name:      "empty identifier",
			id:        "",
			wantError: true,
		},
		{
			name:      "current directory",
			id:        ".",
			wantError: true,
		},
		{
			name:      "parent directory",
			id:        "..",
			wantError: true,
		},
		{
			name:      "path with separator",
			id:        "dataset/fc",
			wantError: true,
		},
		{
			name:      "path with backslash",
			id:        "dataset\\fc",
			wantError: true,
		},
		{
			name:      "hidden name",
			id:        ".gridprep-tmp-1",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.ValidateIdentifier(tt.id)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantError %v", tt.id, err, tt.wantError)
			}
		})
	}
}

func TestRealFS_ReadDir(t *testing.T) {
	fs := &RealFS{}
	tmpDir := t.TempDir()

	for _, name := range []string{"weights.gdb", "Forest", "a.txt"} {
		if err := os.MkdirAll(filepath.Join(tmpDir, name), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	entries, err := fs.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	want := []string{"Forest", "a.txt", "weights.gdb"}
	if len(entries) != len(want) {
		t.Fatalf("ReadDir returned %d entries, want %d", len(entries), len(want))
	}
	for i, entry := range entries {
		if entry.Name() != want[i] {
			t.Errorf("entry %d = %q, want %q", i, entry.Name(), want[i])
		}
	}

	t.Run("missing directory", func(t *testing.T) {
		_, err := fs.ReadDir(filepath.Join(tmpDir, "missing"))
		if !os.IsNotExist(err) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})
}

func TestRealFS_ExistsAndIsDir(t *testing.T) {
	fs := &RealFS{}
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "layer.geojson")
	if err := os.WriteFile(testFile, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	exists, err := fs.Exists(testFile)
	if err != nil || !exists {
		t.Errorf("Exists(file) = %v, %v; want true, nil", exists, err)
	}

	isDir, err := fs.IsDir(testFile)
	if err != nil || isDir {
		t.Errorf("IsDir(file) = %v, %v; want false, nil", isDir, err)
	}

	isDir, err = fs.IsDir(tmpDir)
	if err != nil || !isDir {
		t.Errorf("IsDir(dir) = %v, %v; want true, nil", isDir, err)
	}

	missing := filepath.Join(tmpDir, "nope")
	exists, err = fs.Exists(missing)
	if err != nil || exists {
		t.Errorf("Exists(missing) = %v, %v; want false, nil", exists, err)
	}
	isDir, err = fs.IsDir(missing)
	if err != nil || isDir {
		t.Errorf("IsDir(missing) = %v, %v; want false, nil", isDir, err)
	}
}

func TestRealFS_MkdirAll(t *testing.T) {
	fs := &RealFS{}
	tmpDir := t.TempDir()

	dirPath := filepath.Join(tmpDir, "Intersections.gdb")
	if err := fs.MkdirAll(dirPath, 0755); err != nil {
		t.Fatalf("First MkdirAll failed: %v", err)
	}
	if err := fs.MkdirAll(dirPath, 0755); err != nil {
		t.Errorf("Second MkdirAll should not fail: %v", err)
	}
}

func TestRealFS_Rename(t *testing.T) {
	fs := &RealFS{}
	tmpDir := t.TempDir()

	from := filepath.Join(tmpDir, "PUdbf")
	to := filepath.Join(tmpDir, "PU.dbf")
	if err := os.WriteFile(from, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(to, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := fs.Rename(from, to); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	data, err := os.ReadFile(to)
	if err != nil || string(data) != "new" {
		t.Errorf("expected replaced contents, got %q (%v)", data, err)
	}
	if exists, _ := fs.Exists(from); exists {
		t.Error("source should be gone after Rename")
	}
}

func TestRealFS_AtomicWrite(t *testing.T) {
	fs := &RealFS{}
	tmpDir := t.TempDir()

	t.Run("write creates parent directories", func(t *testing.T) {
		testFile := filepath.Join(tmpDir, "out.gdb", "T_a.geojson")
		content := []byte(`{"type":"FeatureCollection","features":[]}`)

		if err := fs.AtomicWrite(testFile, content, 0644); err != nil {
			t.Fatalf("AtomicWrite failed: %v", err)
		}

		readContent, err := os.ReadFile(testFile)
		if err != nil {
			t.Fatalf("failed to read written file: %v", err)
		}
		if string(readContent) != string(content) {
			t.Errorf("File content mismatch: got %q, want %q", readContent, content)
		}
	})

	t.Run("overwrite leaves no temp files", func(t *testing.T) {
		testFile := filepath.Join(tmpDir, "overwrite.geojson")
		if err := fs.AtomicWrite(testFile, []byte("initial"), 0644); err != nil {
			t.Fatalf("AtomicWrite failed: %v", err)
		}
		if err := fs.AtomicWrite(testFile, []byte("overwritten"), 0644); err != nil {
			t.Fatalf("AtomicWrite failed: %v", err)
		}

		readContent, err := fs.ReadFile(testFile)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if string(readContent) != "overwritten" {
			t.Errorf("File content not updated: got %q", readContent)
		}

		matches, _ := filepath.Glob(filepath.Join(tmpDir, ".gridprep-tmp-*"))
		if len(matches) != 0 {
			t.Errorf("temp files left behind: %v", matches)
		}
	})
}

