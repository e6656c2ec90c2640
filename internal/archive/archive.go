// Package archive streams a session's slide images into a zip container.
// Entries are stored uncompressed since PNG payloads do not shrink further,
// and each entry is renamed to a canonical zero-padded name so extracted
// files sort in slide order everywhere.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"

	"carousel/internal/services"
	"carousel/internal/session"
)

// Builder produces zip archives for ready sessions.
type Builder struct {
	store *session.Store
}

// NewBuilder returns a Builder backed by the given store.
func NewBuilder(store *session.Store) *Builder {
	return &Builder{store: store}
}

// Archive is a prepared zip stream for one session. Preparing resolves the
// session and lists its images up front so callers can fail with a clean
// status before any response bytes go out.
type Archive struct {
	SessionID string
	Slides    []session.SlideFile
}

// Open resolves the session and collects its slide files. Missing or
// expired sessions and sessions without images report not found.
func (b *Builder) Open(ctx context.Context, id string) (*Archive, error) {
	sess, err := b.store.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	slides, err := b.store.SlideFiles(sess.ID)
	if err != nil {
		return nil, err
	}
	if len(slides) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "archive", "open", "session has no images", nil)
	}
	return &Archive{SessionID: sess.ID, Slides: slides}, nil
}

// EntryName returns the canonical archive entry name for a slide ordinal.
func EntryName(ordinal int) string {
	return fmt.Sprintf("slide-%03d.png", ordinal)
}

// WriteTo streams the archive to w. Entries appear in ordinal order using
// the store method. A failure mid-stream leaves the zip truncated; callers
// that have already begun a response can only terminate it.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	counter := &countingWriter{w: w}
	zw := zip.NewWriter(counter)

	for _, slide := range a.Slides {
		if err := writeEntry(zw, slide); err != nil {
			zw.Close()
			return counter.n, err
		}
	}
	if err := zw.Close(); err != nil {
		return counter.n, services.Wrap(services.ErrInternal, "archive", "finalize", "", err)
	}
	return counter.n, nil
}

func writeEntry(zw *zip.Writer, slide session.SlideFile) error {
	file, err := os.Open(slide.Path)
	if err != nil {
		return services.Wrap(services.ErrInternal, "archive", "read slide", slide.Name, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return services.Wrap(services.ErrInternal, "archive", "read slide", slide.Name, err)
	}

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     EntryName(slide.Ordinal),
		Method:   zip.Store,
		Modified: info.ModTime(),
	})
	if err != nil {
		return services.Wrap(services.ErrInternal, "archive", "add entry", slide.Name, err)
	}
	if _, err := io.Copy(entry, file); err != nil {
		return services.Wrap(services.ErrInternal, "archive", "stream slide", slide.Name, err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
