package vo

import (
	"errors"
	"fmt"
	"io"
)

// FileSize represents a file size value object.
type FileSize struct {
	bytes int64
}

const (
	KB int64 = 1024
	MB int64 = 1024 * KB
	GB int64 = 1024 * MB
)

var (
	ErrNegativeSize = errors.New("file size cannot be negative")
	ErrSizeExceeded = errors.New("size limit exceeded")
)

// NewFileSize creates a new FileSize value object.
func NewFileSize(bytes int64) (FileSize, error) {
	if bytes < 0 {
		return FileSize{}, ErrNegativeSize
	}
	return FileSize{bytes: bytes}, nil
}

// FileSizeFromMB creates a FileSize from megabytes.
func FileSizeFromMB(mb int64) FileSize {
	return FileSize{bytes: mb * MB}
}

// Bytes returns the size in bytes.
func (fs FileSize) Bytes() int64 {
	return fs.bytes
}

// IsZero returns true if the size is zero. A zero limit means unlimited.
func (fs FileSize) IsZero() bool {
	return fs.bytes == 0
}

// ExceedsLimit checks if this size exceeds the given limit.
// A zero limit never is exceeded.
func (fs FileSize) ExceedsLimit(limit FileSize) bool {
	return !limit.IsZero() && fs.bytes > limit.bytes
}

// LimitReader wraps r so that reading more than fs bytes fails with ErrSizeExceeded.
func (fs FileSize) LimitReader(r io.Reader) io.Reader {
	if fs.IsZero() {
		return r
	}
	return &limitedReader{r: r, remaining: fs.bytes}
}

// String returns a human-readable string representation.
func (fs FileSize) String() string {
	switch {
	case fs.bytes < KB:
		return fmt.Sprintf("%d B", fs.bytes)
	case fs.bytes < MB:
		return fmt.Sprintf("%.2f KB", float64(fs.bytes)/float64(KB))
	case fs.bytes < GB:
		return fmt.Sprintf("%.2f MB", float64(fs.bytes)/float64(MB))
	default:
		return fmt.Sprintf("%.2f GB", float64(fs.bytes)/float64(GB))
	}
}

type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrSizeExceeded
	}
	// read one byte past the limit to detect overflow
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrSizeExceeded
	}
	return n, err
}
