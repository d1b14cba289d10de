// Package sink serializes movement records as newline-delimited JSON.
package sink

import (
	"fmt"
	"io"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/harbour-movements/internal/movement"
)

// JSONL writes one JSON object per line.
type JSONL struct {
	logger *zap.Logger
}

// NewJSONL returns a JSONL sink.
func NewJSONL(logger *zap.Logger) *JSONL {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONL{logger: logger}
}

// Write drains movements into w and returns the number of lines written.
// The first (date/time) field of each record is replaced by its ISO-8601
// string before encoding. Writing stops at the first error from the sequence
// or from w; lines already written stay in w.
func (s *JSONL) Write(w io.Writer, movements iter.Seq2[movement.Record, error]) (int, error) {
	written := 0
	for rec, err := range movements {
		if err != nil {
			return written, err
		}
		if key, value, ok := rec.First(); ok {
			if ts, isTime := value.(time.Time); isTime {
				rec.Set(key, movement.FormatTimestamp(ts))
			}
		}
		line, err := rec.MarshalJSON()
		if err != nil {
			return written, fmt.Errorf("marshal movement: %w", err)
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return written, fmt.Errorf("write movement: %w", err)
		}
		written++
	}
	s.logger.Debug("Wrote movements", zap.Int("lines", written))
	return written, nil
}
