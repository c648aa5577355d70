package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "clean_name_untouched",
			input: "movie.mkv",
			want:  "movie.mkv",
		},
		{
			name:  "path_separators_replaced",
			input: "a/b\\c.mp4",
			want:  "a_b_c.mp4",
		},
		{
			name:  "unsafe_characters_replaced",
			input: `what<is>this:"file"?.bin`,
			want:  `what_is_this__file__.bin`,
		},
		{
			name:  "whitespace_collapsed",
			input: "my    cool\t\tfile.mp3",
			want:  "my cool file.mp3",
		},
		{
			name:  "surrounding_whitespace_trimmed",
			input: "  padded.pdf  ",
			want:  "padded.pdf",
		},
		{
			name:  "empty_name_falls_back",
			input: "",
			want:  "download",
		},
		{
			name:  "dot_falls_back",
			input: ".",
			want:  "download",
		},
		{
			name:  "dotdot_falls_back",
			input: "..",
			want:  "download",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_TruncatesLongNames(t *testing.T) {
	long := strings.Repeat("a", 300) + ".mkv"

	got := SanitizeFilename(long)

	if len(got) > maxFilenameLength {
		t.Errorf("sanitized name is %d chars, want <= %d", len(got), maxFilenameLength)
	}
	if filepath.Ext(got) != ".mkv" {
		t.Errorf("extension lost during truncation: %q", got)
	}
}

func TestSanitizeFilename_Idempotent(t *testing.T) {
	inputs := []string{
		"a/b\\c.mp4",
		"  spaced   out .bin ",
		strings.Repeat("x", 500) + ".txt",
		"",
	}

	for _, input := range inputs {
		once := SanitizeFilename(input)
		twice := SanitizeFilename(once)
		if once != twice {
			t.Errorf("not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}

func TestFileOperations_UniqueWorkDir(t *testing.T) {
	fileOps := NewFileOperations()
	base := t.TempDir()

	first, err := fileOps.UniqueWorkDir(base)
	if err != nil {
		t.Fatalf("UniqueWorkDir failed: %v", err)
	}
	second, err := fileOps.UniqueWorkDir(base)
	if err != nil {
		t.Fatalf("UniqueWorkDir failed: %v", err)
	}

	if first == second {
		t.Errorf("expected distinct directories, got %q twice", first)
	}

	for _, dir := range []string{first, second} {
		if !strings.HasPrefix(dir, base) {
			t.Errorf("work dir %q not under base %q", dir, base)
		}
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("work dir %q not created: %v", dir, err)
		} else if !info.IsDir() {
			t.Errorf("work dir %q is not a directory", dir)
		}
	}
}

func TestFileOperations_RemoveArtifacts(t *testing.T) {
	fileOps := NewFileOperations()

	t.Run("removes_directory_and_contents", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "work")
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "file.part"), []byte("data"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := fileOps.RemoveArtifacts(dir); err != nil {
			t.Fatalf("RemoveArtifacts failed: %v", err)
		}
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("directory still exists after RemoveArtifacts")
		}
	})

	t.Run("missing_directory_is_not_an_error", func(t *testing.T) {
		if err := fileOps.RemoveArtifacts(filepath.Join(t.TempDir(), "never-created")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("empty_path_is_a_no_op", func(t *testing.T) {
		if err := fileOps.RemoveArtifacts(""); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestFileOperations_DetectPartialDownload(t *testing.T) {
	fileOps := NewFileOperations()
	dir := t.TempDir()
	outputPath := filepath.Join(dir, "file.bin")

	exists, size, err := fileOps.DetectPartialDownload(outputPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists || size != 0 {
		t.Errorf("expected no partial, got exists=%v size=%d", exists, size)
	}

	if err := os.WriteFile(outputPath+".part", []byte("12345"), 0644); err != nil {
		t.Fatal(err)
	}

	exists, size, err = fileOps.DetectPartialDownload(outputPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists || size != 5 {
		t.Errorf("expected exists=true size=5, got exists=%v size=%d", exists, size)
	}
}

func TestFileOperations_CreatePartialFile(t *testing.T) {
	fileOps := NewFileOperations()
	partPath := filepath.Join(t.TempDir(), "file.bin.part")

	if err := fileOps.CreatePartialFile(partPath, 4096); err != nil {
		t.Fatalf("CreatePartialFile failed: %v", err)
	}

	size, err := fileOps.GetFileSize(partPath)
	if err != nil {
		t.Fatalf("GetFileSize failed: %v", err)
	}
	if size != 4096 {
		t.Errorf("pre-allocated size = %d, want 4096", size)
	}
}

func TestFileOperations_AtomicRename(t *testing.T) {
	fileOps := NewFileOperations()
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "file.bin.part")
	newPath := filepath.Join(dir, "file.bin")

	if err := os.WriteFile(oldPath, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := fileOps.AtomicRename(oldPath, newPath); err != nil {
		t.Fatalf("AtomicRename failed: %v", err)
	}

	data, err := os.ReadFile(newPath)
	if err != nil {
		t.Fatalf("renamed file unreadable: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("renamed file content = %q, want %q", data, "payload")
	}
	if fileOps.FileExists(oldPath) {
		t.Errorf("old path still exists after rename")
	}
}
