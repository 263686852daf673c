package infra

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/profprune/internal/domain"
)

// FileLogSink implements domain.LogSink as a per-session audit file.
// Entries go through a zap console encoder so every line carries a timestamp and level.
type FileLogSink struct {
	path   string
	file   *os.File
	logger *zap.Logger
}

// SessionLogName returns profprune-<host>-<yyyymmdd-HHMMSS>.log.
func SessionLogName(host string, at time.Time) string {
	return fmt.Sprintf("profprune-%s-%s.log", sanitizeFileComponent(host), at.Format("20060102-150405"))
}

// NewFileLogSink creates the session log file in dir.
func NewFileLogSink(dir, host string, at time.Time) (*FileLogSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, SessionLogName(host, at))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: "  ",
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(file), zapcore.DebugLevel)

	return &FileLogSink{
		path:   path,
		file:   file,
		logger: zap.New(core),
	}, nil
}

// Path returns the session log file path.
func (s *FileLogSink) Path() string {
	return s.path
}

// AppendSection writes a titled block with tab-aligned lines.
func (s *FileLogSink) AppendSection(title string, lines []string) {
	s.logger.Info(fmt.Sprintf("=== %s (%d) ===", title, len(lines)))
	if len(lines) == 0 {
		s.logger.Info("(none)")
		return
	}
	for _, line := range alignColumns(lines) {
		s.logger.Info(line)
	}
}

// AppendLine writes one message at the given severity.
func (s *FileLogSink) AppendLine(message string, severity domain.Severity) {
	switch severity {
	case domain.SeverityError:
		s.logger.Error(message)
	case domain.SeverityWarn:
		s.logger.Warn(message)
	default:
		s.logger.Info(message)
	}
}

// Close flushes and closes the file.
func (s *FileLogSink) Close() error {
	if s.file == nil {
		return nil
	}
	err := multierr.Append(s.logger.Sync(), s.file.Close())
	s.file = nil
	return err
}

// alignColumns pads tab-separated fields into columns.
func alignColumns(lines []string) []string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	w.Flush()
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
}

// sanitizeFileComponent replaces characters Windows forbids in file names.
func sanitizeFileComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}

// Ensure FileLogSink implements domain.LogSink.
var _ domain.LogSink = (*FileLogSink)(nil)
