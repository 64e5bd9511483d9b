// Package source opens upload inputs named by a local path or an http(s) or
// ftp URL. Remote bodies are spooled to a temp file so every input is
// seekable and the row count can be pre-scanned.
package source

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// Input is an opened, seekable upload.
type Input struct {
	*os.File
	// Name is the base file name, used to pick the decoder.
	Name    string
	cleanup func()
}

// Close closes the file and removes any spool copy.
func (in *Input) Close() error {
	err := in.File.Close()
	if in.cleanup != nil {
		in.cleanup()
	}
	return err
}

// Opener resolves locations to inputs.
type Opener struct {
	http *HTTPFetcher
	ftp  *FTPFetcher
}

// NewOpener creates an opener with the given remote fetchers.
func NewOpener(h *HTTPFetcher, f *FTPFetcher) *Opener {
	if h == nil {
		h = NewHTTPFetcher(HTTPOptions{})
	}
	if f == nil {
		f = NewFTPFetcher(FTPOptions{})
	}
	return &Opener{http: h, ftp: f}
}

// Open returns the input at location.
func (o *Opener) Open(ctx context.Context, location string) (*Input, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 { // bare path or Windows drive letter
		return openFile(location)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		body, err := o.http.Download(ctx, location)
		if err != nil {
			return nil, err
		}
		return spool(body, path.Base(u.Path))
	case "ftp":
		body, err := o.ftp.Download(ctx, location)
		if err != nil {
			return nil, err
		}
		return spool(body, path.Base(u.Path))
	default:
		return nil, eris.Errorf("source: unsupported scheme %q", u.Scheme)
	}
}

func openFile(p string) (*Input, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open %s", p)
	}
	return &Input{File: f, Name: baseName(p)}, nil
}

func baseName(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Base(p)
}

// spool copies body to a temp file, closes body, and rewinds the copy.
func spool(body io.ReadCloser, name string) (*Input, error) {
	defer body.Close() //nolint:errcheck

	f, err := os.CreateTemp("", "pricing-upload-*")
	if err != nil {
		return nil, eris.Wrap(err, "source: create spool file")
	}
	remove := func() { _ = os.Remove(f.Name()) }

	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		remove()
		return nil, eris.Wrap(err, "source: spool download")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		remove()
		return nil, eris.Wrap(err, "source: rewind spool file")
	}
	return &Input{File: f, Name: name, cleanup: remove}, nil
}
