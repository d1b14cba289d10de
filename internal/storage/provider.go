// Package storage defines where a run's movements file lives and the
// interface for creating it. Objects are laid out as
// <root>/<YYYY>/<MM>/<DD>/<YYYY-MM-DD_HHMM±hhmm>.jsonl using the run's
// local time in the harbour timezone.
package storage

import (
	"context"
	"io"
	"path"
	"time"
)

// ContentType is used for backends that record one.
const ContentType = "application/x-ndjson"

// Store creates the output object for a run. Creating an object that already
// exists replaces it.
type Store interface {
	Create(ctx context.Context, at time.Time) (w io.WriteCloser, uri string, err error)
}

// DayDir returns root/YYYY/MM/DD for at, slash separated.
func DayDir(root string, at time.Time) string {
	return path.Join(root, at.Format("2006"), at.Format("01"), at.Format("02"))
}

// FileName returns the run's file name, e.g. 2024-01-15_0930+1100.jsonl.
func FileName(at time.Time) string {
	return at.Format("2006-01-02_1504-0700") + ".jsonl"
}

// ObjectPath joins DayDir and FileName.
func ObjectPath(root string, at time.Time) string {
	return path.Join(DayDir(root, at), FileName(at))
}
