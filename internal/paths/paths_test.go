package paths

import (
	"errors"
	"testing"
)

func TestGenerateUserPath(t *testing.T) {
	tests := []struct {
		folder FolderType
		want   string
	}{
		{FolderInput, "user123/input/file.txt"},
		{FolderOutput, "user123/output/file.txt"},
	}
	for _, tt := range tests {
		got, err := GenerateUserPath("user123", tt.folder, "file.txt")
		if err != nil {
			t.Fatalf("GenerateUserPath(%s): %v", tt.folder, err)
		}
		if got != tt.want {
			t.Errorf("GenerateUserPath(%s) = %q, want %q", tt.folder, got, tt.want)
		}
	}
}

func TestGenerateUserPathValidation(t *testing.T) {
	if _, err := GenerateUserPath("", FolderInput, "file.txt"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty user: got %v, want ErrInvalidArgument", err)
	} else if err.Error() != "invalid argument: user ID is required" {
		t.Errorf("empty user message = %q", err.Error())
	}

	_, err := GenerateUserPath("user123", "invalid", "file.txt")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("invalid folder: got %v, want ErrInvalidArgument", err)
	}
	if err.Error() != `invalid argument: folder type must be either "input" or "output"` {
		t.Errorf("invalid folder message = %q", err.Error())
	}
}

func TestGenerateFolderPath(t *testing.T) {
	got, err := GenerateFolderPath("user123", FolderOutput)
	if err != nil {
		t.Fatal(err)
	}
	if got != "user123/output/" {
		t.Errorf("GenerateFolderPath = %q", got)
	}

	for _, tt := range []struct {
		user   string
		folder FolderType
	}{
		{"", FolderInput},
		{"user123", ""},
		{"user123", "Input"},
	} {
		if _, err := GenerateFolderPath(tt.user, tt.folder); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("GenerateFolderPath(%q, %q) err = %v", tt.user, tt.folder, err)
		}
	}
}

func TestParseFolderType(t *testing.T) {
	if f, err := ParseFolderType("input"); err != nil || f != FolderInput {
		t.Errorf("ParseFolderType(input) = %q, %v", f, err)
	}
	if _, err := ParseFolderType("trash"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseFolderType(trash) err = %v", err)
	}
	if FolderInput.Label() != "Input Files" || FolderOutput.Label() != "Output Files" {
		t.Error("unexpected folder labels")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{1000, "1000 Bytes"},
		{1024, "1 KB"},
		{1048576, "1 MB"},
		{1073741824, "1 GB"},
		{1099511627776, "1 TB"},
		{1234567, "1.18 MB"},
		{-2048, "-2 KB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.bytes); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatBytesWith(t *testing.T) {
	tests := []struct {
		bytes    int64
		decimals int
		base     int64
		want     string
	}{
		{1536, 1, 1024, "1.5 KB"},
		{1536, 0, 1024, "2 KB"},
		{1536, -3, 1024, "2 KB"},
		{1500, 2, 1000, "1.5 KB"},
		{1000000, 2, 1000, "1 MB"},
		{2048, 2, 0, "2 KB"},
	}
	for _, tt := range tests {
		if got := FormatBytesWith(tt.bytes, tt.decimals, tt.base); got != tt.want {
			t.Errorf("FormatBytesWith(%d, %d, %d) = %q, want %q", tt.bytes, tt.decimals, tt.base, got, tt.want)
		}
	}
}

func TestExtractFilenameFromPath(t *testing.T) {
	tests := map[string]string{
		"user123/input/file.txt": "file.txt",
		"a/b/c.txt":              "c.txt",
		"file.txt":               "file.txt",
		"user123/input/":         "",
		"":                       "",
	}
	for in, want := range tests {
		if got := ExtractFilenameFromPath(in); got != want {
			t.Errorf("ExtractFilenameFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsUserPath(t *testing.T) {
	tests := []struct {
		path, user string
		want       bool
	}{
		{"user123/input/file.txt", "user123", true},
		{"user123/output/file.txt", "user123", true},
		{"user456/input/file.txt", "user123", false},
		{"user1234/input/file.txt", "user123", false},
		{"", "user123", false},
		{"user123/input/file.txt", "", false},
	}
	for _, tt := range tests {
		if got := IsUserPath(tt.path, tt.user); got != tt.want {
			t.Errorf("IsUserPath(%q, %q) = %v, want %v", tt.path, tt.user, got, tt.want)
		}
	}
}
