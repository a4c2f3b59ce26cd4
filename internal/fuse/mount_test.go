package fuse

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateMountpoint(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"directory", dir, false},
		{"empty", "", true},
		{"missing", filepath.Join(dir, "absent"), true},
		{"regular file", file, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMountpoint(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateMountpoint(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}
