package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"applysharp/internal/errors"

	"gopkg.in/yaml.v3"
)

// FileProcessor handles the files a CLI command writes or reads besides
// the documents themselves.
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	return &FileProcessor{logger: logger}
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	// Output holds a CV, so keep it private to the user.
	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	info, err := os.Stat(filename)
	if err == nil && info.IsDir() {
		return errors.NewInvalidInputError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Output path is a directory: %s", filename), nil)
	}
	return nil
}

// ReadAnswers loads question answers from a YAML or JSON file mapping
// question ids to answers. An empty path yields no answers.
func (fp *FileProcessor) ReadAnswers(filename string) (map[string]string, error) {
	answers := map[string]string{}
	if filename == "" {
		return answers, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}

	if err := yaml.Unmarshal(data, &answers); err != nil {
		return nil, errors.NewInvalidInputError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Answers file must map question ids to text: %s", filename), err)
	}

	for id, answer := range answers {
		answers[id] = strings.TrimSpace(answer)
	}
	fp.logger.Debug("Answers loaded", "file", filename, "count", len(answers))
	return answers, nil
}
