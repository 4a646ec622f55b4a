package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

var (
	// ErrNoContent indicates the upload or form carried no usable notes.
	ErrNoContent = errors.New("no notes provided")

	// ErrUnsupportedFormat indicates an upload the notes reader cannot decode.
	ErrUnsupportedFormat = errors.New("unsupported notes format")
)

// Notes is the normalized text of one upload.
type Notes struct {
	SourceName string
	StoredPath string
	Text       string
	Truncated  bool
}

// NotesService stores uploaded notes and turns them into plain text.
type NotesService struct {
	uploadDir string
	maxChars  int
}

func NewNotesService(uploadDir string, maxChars int) *NotesService {
	return &NotesService{uploadDir: uploadDir, maxChars: maxChars}
}

// Save copies src into the upload directory and extracts its text. An empty
// uploadDir skips the copy.
func (s *NotesService) Save(ctx context.Context, original string, src io.Reader) (*Notes, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := ExtractText(original, data)
	if err != nil {
		return nil, err
	}
	notes, err := s.FromText(original, text)
	if err != nil {
		return nil, err
	}

	if s.uploadDir != "" {
		if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure upload dir: %w", err)
		}
		storedPath := filepath.Join(s.uploadDir, uuid.NewString()+filepath.Ext(original))
		if err := os.WriteFile(storedPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("write file: %w", err)
		}
		notes.StoredPath = storedPath
	}
	return notes, nil
}

// FromText normalizes text typed into a form or read from disk.
func (s *NotesService) FromText(sourceName, text string) (*Notes, error) {
	text = NormalizeText(text)
	if text == "" {
		return nil, ErrNoContent
	}
	notes := &Notes{SourceName: sourceName, Text: text}
	if s.maxChars > 0 {
		if runes := []rune(text); len(runes) > s.maxChars {
			notes.Text = strings.TrimSpace(string(runes[:s.maxChars]))
			notes.Truncated = true
		}
	}
	return notes, nil
}

// ReadFile loads notes from a local path, for the CLI.
func (s *NotesService) ReadFile(path string) (*Notes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read notes %s: %w", path, err)
	}
	text, err := ExtractText(path, data)
	if err != nil {
		return nil, err
	}
	return s.FromText(filepath.Base(path), text)
}

// ExtractText decodes data by the extension of name. PDFs go through the
// text layer; anything else with no extension or a text extension is read as
// UTF-8.
func ExtractText(name string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return extractPDFText(data)
	case "", ".txt", ".md", ".markdown", ".text", ".notes":
		return string(data), nil
	default:
		if bytes.HasPrefix(data, []byte("%PDF-")) {
			return extractPDFText(data)
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// NormalizeText drops carriage returns and trailing whitespace, collapses runs
// of blank lines and trims the result.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\u00a0")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
