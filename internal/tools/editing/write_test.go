package editing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWrite_Create(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	filePath := "new/dir/test.txt"
	content := "Hello World"

	// Test
	resultJSON, err := writeImpl(tmpDir, filePath, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Verify
	if !strings.Contains(resultJSON, `"status":"created"`) {
		t.Errorf("expected status 'created', got: %s", resultJSON)
	}

	readContent, err := os.ReadFile(filepath.Join(tmpDir, filePath))
	if err != nil {
		t.Fatal(err)
	}
	if string(readContent) != content {
		t.Errorf("content mismatch")
	}
}

func TestWrite_Overwrite(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	filePath := "test.txt"
	initialContent := "Initial"
	if err := os.WriteFile(filepath.Join(tmpDir, filePath), []byte(initialContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Test
	newContent := "Overwritten"
	resultJSON, err := writeImpl(tmpDir, filePath, newContent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Verify
	if !strings.Contains(resultJSON, `"status":"overwritten"`) {
		t.Errorf("expected status 'overwritten', got: %s", resultJSON)
	}

	readContent, err := os.ReadFile(filepath.Join(tmpDir, filePath))
	if err != nil {
		t.Fatal(err)
	}
	if string(readContent) != newContent {
		t.Errorf("content mismatch")
	}
}

func TestWrite_Skipped(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	filePath := "test.txt"
	content := "Same Content"
	if err := os.WriteFile(filepath.Join(tmpDir, filePath), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	// Test
	resultJSON, err := writeImpl(tmpDir, filePath, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Verify
	if !strings.Contains(resultJSON, `"status":"skipped"`) {
		t.Errorf("expected status 'skipped', got: %s", resultJSON)
	}
}

func TestWrite_Binary(t *testing.T) {
	// Setup
	tmpDir := t.TempDir()
	filePath := "image.png"

	// Test
	resultJSON, err := writeImpl(tmpDir, filePath, "fake png content")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Verify
	if !strings.Contains(resultJSON, `"status":"failed"`) {
		t.Errorf("expected failure, got success: %s", resultJSON)
	}
	if !strings.Contains(resultJSON, "File type not allowed") {
		t.Errorf("expected 'File type not allowed' error, got: %s", resultJSON)
	}
}
