package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// PromptConfig holds prompt overrides for each generation call
type PromptConfig struct {
	CV          OperationPrompts `mapstructure:"cv"`
	CoverLetter OperationPrompts `mapstructure:"coverLetter"`
	Outreach    OperationPrompts `mapstructure:"outreach"`
}

// OperationPrompts holds inline prompt text and optional file paths.
// File content replaces the inline text once loaded.
type OperationPrompts struct {
	System     string `mapstructure:"system"`
	SystemFile string `mapstructure:"systemFile"`
	User       string `mapstructure:"user"`
	UserFile   string `mapstructure:"userFile"`
}

func (c *Config) operationPrompts() map[Operation]*OperationPrompts {
	return map[Operation]*OperationPrompts{
		OperationCV:          &c.Prompts.CV,
		OperationCoverLetter: &c.Prompts.CoverLetter,
		OperationOutreach:    &c.Prompts.Outreach,
	}
}

// loadPromptsFromFiles loads custom prompts from external files if file paths are specified
func (c *Config) loadPromptsFromFiles() error {
	loaded := 0
	for op, prompts := range c.operationPrompts() {
		if prompts.SystemFile != "" {
			content, err := loadPromptFromFile(prompts.SystemFile, "system", op)
			if err != nil {
				return err
			}
			prompts.System = content
			loaded++
		}
		if prompts.UserFile != "" {
			content, err := loadPromptFromFile(prompts.UserFile, "user", op)
			if err != nil {
				return err
			}
			prompts.User = content
			loaded++
		}
	}

	if loaded == 0 {
		log.Println("[CONFIG] No custom prompt files loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompt files loaded: %d", loaded)
	}
	return nil
}

// loadPromptFromFile loads a prompt from a file and rejects empty content
func loadPromptFromFile(filePath, promptType string, op Operation) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %s %s prompt file '%s': %w", promptType, op, filePath, err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, op, absPath, err)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, op, absPath)
	}

	log.Printf("[CONFIG] Loaded %s %s prompt from file: %s (%d characters)", promptType, op, absPath, len(trimmed))
	return trimmed, nil
}

// validatePromptFiles checks that configured prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, promptType string, op Operation) {
		if filePath == "" {
			return
		}
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", promptType, op, filePath))
			return
		}
		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", promptType, op, absPath))
		}
	}

	for _, op := range []Operation{OperationCV, OperationCoverLetter, OperationOutreach} {
		prompts := c.operationPrompts()[op]
		validateFile(prompts.SystemFile, "system", op)
		validateFile(prompts.UserFile, "user", op)
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}
	return nil
}
