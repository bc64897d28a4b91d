// Package paths builds the per-user storage keys and formats sizes and names
// for display.
//
// Every key issued for a user starts with "<username>/". A folder key ends in
// a slash and names the zero-byte marker object that represents the folder.
package paths

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidArgument is returned for missing or out-of-range arguments.
var ErrInvalidArgument = errors.New("invalid argument")

// FolderType names one of the two per-user folders.
type FolderType string

const (
	FolderInput  FolderType = "input"
	FolderOutput FolderType = "output"
)

// FolderTypes lists the accepted folder types in display order.
var FolderTypes = []FolderType{FolderInput, FolderOutput}

// Valid reports whether f is input or output.
func (f FolderType) Valid() bool {
	return f == FolderInput || f == FolderOutput
}

// Label returns the navigation label for the folder view.
func (f FolderType) Label() string {
	if f == FolderInput {
		return "Input Files"
	}
	return "Output Files"
}

// ParseFolderType converts s into a FolderType.
func ParseFolderType(s string) (FolderType, error) {
	f := FolderType(s)
	if !f.Valid() {
		return "", errFolderType()
	}
	return f, nil
}

func errFolderType() error {
	return fmt.Errorf(`%w: folder type must be either "input" or "output"`, ErrInvalidArgument)
}

func validate(userID string, folderType FolderType) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID is required", ErrInvalidArgument)
	}
	if !folderType.Valid() {
		return errFolderType()
	}
	return nil
}

// GenerateUserPath returns the storage key userID/folderType/fileName.
func GenerateUserPath(userID string, folderType FolderType, fileName string) (string, error) {
	if err := validate(userID, folderType); err != nil {
		return "", err
	}
	return userID + "/" + string(folderType) + "/" + fileName, nil
}

// GenerateFolderPath returns the folder key userID/folderType/ (with the
// trailing slash).
func GenerateFolderPath(userID string, folderType FolderType) (string, error) {
	if err := validate(userID, folderType); err != nil {
		return "", err
	}
	return userID + "/" + string(folderType) + "/", nil
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// FormatBytes formats a byte count with two decimals on a 1024 base.
func FormatBytes(bytes int64) string {
	return FormatBytesWith(bytes, 2, 1024)
}

// FormatBytesWith formats a byte count as "<number> <unit>". The number is
// rounded to decimals places (negative counts are treated as 0) and printed
// without trailing zeros. A base below 2 falls back to 1024.
func FormatBytesWith(bytes int64, decimals int, base int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	if decimals < 0 {
		decimals = 0
	}
	if base < 2 {
		base = 1024
	}

	abs := math.Abs(float64(bytes))
	k := float64(base)

	i := int(math.Floor(math.Log(abs) / math.Log(k)))
	// log ratios of exact powers can land a hair under the integer
	if math.Pow(k, float64(i+1)) <= abs {
		i++
	} else if i > 0 && math.Pow(k, float64(i)) > abs {
		i--
	}
	if i < 0 {
		i = 0
	}
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}

	scale := math.Pow(10, float64(decimals))
	value := math.Round(abs/math.Pow(k, float64(i))*scale) / scale
	if bytes < 0 {
		value = -value
	}

	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[i]
}

// ExtractFilenameFromPath returns the part of path after the last slash.
func ExtractFilenameFromPath(path string) string {
	if path == "" {
		return ""
	}
	return path[strings.LastIndex(path, "/")+1:]
}

// IsUserPath reports whether path lives under userID's partition.
func IsUserPath(path, userID string) bool {
	if path == "" || userID == "" {
		return false
	}
	return strings.HasPrefix(path, userID+"/")
}
