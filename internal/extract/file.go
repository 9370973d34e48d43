package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"applysharp/internal/errors"
)

var textExtensions = []string{".txt", ".md", ".markdown", ".text"}

// FileLoader reads CV and LinkedIn documents from disk for the CLI.
// PDFs go through the extractor; plain-text files are read as-is.
type FileLoader struct {
	extractor Extractor
	maxSize   int64
	logger    *errors.Logger
}

// NewFileLoader creates a loader backed by the given extractor.
func NewFileLoader(extractor Extractor, maxSize int64, logger *errors.Logger) *FileLoader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &FileLoader{extractor: extractor, maxSize: maxSize, logger: logger}
}

// Load returns the text of the document at path. An empty path yields "".
func (fl *FileLoader) Load(ctx context.Context, label, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if err := validateInputFile(path); err != nil {
		return "", err
	}

	data, err := fl.readFile(path)
	if err != nil {
		return "", err
	}

	if IsTextFile(path) {
		text := Normalize(string(data))
		if text == "" {
			return "", errors.NewInvalidInputError(errors.ErrCodeEmptyCV,
				fmt.Sprintf("%s file is empty: %s", label, path), nil)
		}
		return text, nil
	}
	return fl.extractor.ExtractText(ctx, label, data)
}

func (fl *FileLoader) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", path), err)
	}
	defer func() {
		if err := file.Close(); err != nil && fl.logger != nil {
			fl.logger.Warn("Failed to close file", "filename", path, "error", err)
		}
	}()

	// Read one byte past the limit so oversize files are detected without loading them whole.
	data, err := io.ReadAll(io.LimitReader(file, fl.maxSize+1))
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", path), err)
	}
	if int64(len(data)) > fl.maxSize {
		return nil, errors.NewInvalidInputError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("File too large: %s (max %s)", path, FormatFileSize(fl.maxSize)), nil)
	}
	return data, nil
}

// WriteFile writes content, creating parent directories as needed.
func WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}
	return nil
}

func validateInputFile(filename string) error {
	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot access file: %s", filename), err)
	}
	if info.IsDir() {
		return errors.NewInvalidInputError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Path is a directory, not a file: %s", filename), nil)
	}
	return nil
}

// IsTextFile reports whether the file has a plain-text extension.
func IsTextFile(filename string) bool {
	return slices.Contains(textExtensions, strings.ToLower(filepath.Ext(filename)))
}

// FormatFileSize returns a human-readable file size.
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
