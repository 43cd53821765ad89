package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FileEmailSender appends every message to a local file.
type FileEmailSender struct {
	mu       sync.Mutex
	filePath string
	from     string
	logger   *zap.Logger
}

// NewFileEmailSender creates a new FileEmailSender, creating the parent
// directory of filePath if needed.
func NewFileEmailSender(filePath, from string, logger *zap.Logger) (*FileEmailSender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log file '%s': %w", dir, err)
	}
	return &FileEmailSender{filePath: filePath, from: from, logger: logger}, nil
}

func (s *FileEmailSender) Send(_ context.Context, to []string, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open email log file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Email Logged at %s ---\n", time.Now().Format(time.RFC3339Nano))
	fmt.Fprintf(&sb, "From: %s\nTo: %s\nSubject: %s\n\n", s.from, strings.Join(to, ", "), subject)
	sb.WriteString(body)
	sb.WriteString("\n--- End Logged Email ---\n\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write email to log file: %w", err)
	}
	s.logger.Debug("Email written to file", zap.Strings("to", to), zap.String("path", s.filePath))
	return nil
}
