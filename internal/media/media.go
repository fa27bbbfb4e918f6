// Package media resolves a post's media path to bytes or to a URL a platform
// can pull from.
package media

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

var (
	ErrNotFound = errors.New("media not found")
	ErrNoURL    = errors.New("media source cannot produce public urls")
)

type Source interface {
	Open(ctx context.Context, path string) (*Object, error)
	URL(ctx context.Context, path string) (string, error)
}

// Object is an opened media file. Kind is sniffed from the first bytes.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	Kind        types.Type
}

func (o *Object) IsVideo() bool { return o.Kind.MIME.Type == "video" }
func (o *Object) IsImage() bool { return o.Kind.MIME.Type == "image" }

func (o *Object) Close() error {
	if o.Body == nil {
		return nil
	}
	return o.Body.Close()
}

// sniffLen matches what filetype needs to match every known signature.
const sniffLen = 262

type readCloser struct {
	io.Reader
	io.Closer
}

// newObject peeks at body without consuming it and fills in Kind. A declared
// content type is kept when the bytes are not recognised.
func newObject(body io.ReadCloser, size int64, contentType string) *Object {
	br := bufio.NewReaderSize(body, sniffLen)
	head, _ := br.Peek(sniffLen)

	kind, _ := filetype.Match(head)
	if kind != filetype.Unknown {
		contentType = kind.MIME.Value
	} else if contentType != "" {
		kind = kindFromContentType(contentType)
	}

	return &Object{
		Body:        readCloser{Reader: br, Closer: body},
		Size:        size,
		ContentType: contentType,
		Kind:        kind,
	}
}

func kindFromContentType(ct string) types.Type {
	ct = strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	parts := strings.SplitN(ct, "/", 2)
	if len(parts) != 2 {
		return filetype.Unknown
	}
	return types.Type{MIME: types.NewMIME(ct)}
}
