package logging

import (
	"bytes"
	"log/slog"
	"strings"
)

// Writer forwards line-oriented output, such as kubectl apply results, to a
// logger at debug level. Partial lines are buffered until Flush.
type Writer struct {
	logger *slog.Logger
	source string
	buf    bytes.Buffer
}

// NewWriter returns a Writer tagging every line with source.
func NewWriter(logger *slog.Logger, source string) *Writer {
	return &Writer{logger: logger, source: source}
}

// Write logs each complete line in p.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line: put it back for the next Write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.emit(line)
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *Writer) Flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *Writer) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || w.logger == nil {
		return
	}
	w.logger.Debug("command output", "source", w.source, "line", line)
}
