package imagehost

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSize is the largest file accepted for upload (5 MiB).
const MaxSize int64 = 5 << 20

var (
	ErrNoFile   = errors.New("no file provided")
	ErrNotImage = errors.New("only image files are allowed")
	ErrTooLarge = errors.New("file size exceeds 5MB limit")
)

const sniffLen = 3072

type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

func genericType(ct string) bool {
	ct = strings.TrimSpace(strings.ToLower(ct))
	return ct == "" || strings.HasPrefix(ct, "application/octet-stream")
}

// Check rejects files that are not images or exceed MaxSize. Nothing is
// sent anywhere. When the declared type says nothing useful the type is
// sniffed from the first bytes, which stay readable from f.Body.
func Check(f *File) error {
	if f == nil || f.Body == nil {
		return ErrNoFile
	}
	if f.Size > MaxSize {
		return ErrTooLarge
	}
	if genericType(f.ContentType) {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(f.Body, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return err
		}
		head = head[:n]
		f.ContentType = mimetype.Detect(head).String()
		f.Body = io.MultiReader(bytes.NewReader(head), f.Body)
	}
	if !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
		return ErrNotImage
	}
	return nil
}
