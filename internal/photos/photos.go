// Package photos accepts store photo uploads, resizes them and serves them back.
package photos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/ayush/storefinder/internal/metrics"
	"github.com/ayush/storefinder/internal/store"
	"github.com/ayush/storefinder/internal/web"
)

const (
	// Field is the multipart field carrying the photo.
	Field = "photo"
	// Width is the width every stored photo is resized to. Height follows the aspect ratio.
	Width = 800
)

var (
	ErrNotImage    = errors.New("That filetype isn't allowed!")
	ErrUnsupported = errors.New("That image format isn't supported!")
	ErrTooMany     = errors.New("Only one photo can be uploaded at a time!")
)

// FileStore keeps photo bytes under a name.
type FileStore interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) error
	Download(ctx context.Context, name string) ([]byte, string, error)
	Remove(ctx context.Context, name string) error
}

// ResizeFunc scales an encoded image to Width and re-encodes it as ext.
type ResizeFunc func(data []byte, ext string) ([]byte, error)

// Uploader turns an uploaded photo into a stored, resized file.
type Uploader struct {
	files  FileStore
	resize ResizeFunc
	newID  func() string
}

func NewUploader(files FileStore) *Uploader {
	return &Uploader{files: files, resize: Resize, newID: uuid.NewString}
}

// Filter accepts only parts whose declared content type is an image.
func Filter(fh *multipart.FileHeader) error {
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return ErrNotImage
	}
	return nil
}

// Resize decodes data, scales it to Width with Lanczos resampling and encodes it
// back in the format named by ext.
func Resize(data []byte, ext string) ([]byte, error) {
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, ErrUnsupported
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrUnsupported
	}
	img = imaging.Resize(img, Width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ext, err)
	}
	return buf.Bytes(), nil
}

// Save filters, resizes and stores one uploaded file, returning its new name.
func (u *Uploader) Save(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if err := Filter(fh); err != nil {
		return "", err
	}
	contentType := fh.Header.Get("Content-Type")
	ext := strings.TrimPrefix(contentType, "image/")

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	resized, err := u.resize(data, ext)
	if err != nil {
		return "", err
	}
	name := u.newID() + "." + ext
	if err := u.files.Upload(ctx, name, resized, contentType); err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	metrics.PhotosUploaded.Inc()
	return name, nil
}

// Step stores the photo field, if present, and records its name on the context.
// Rejected uploads flash a notice and send the user back to the form.
func (u *Uploader) Step(c *web.Context) web.Response {
	if err := c.ParseForm(); err != nil {
		return web.Fail(web.NewError(http.StatusBadRequest, "Invalid form submission"))
	}
	if c.Request.MultipartForm == nil {
		return nil
	}
	files := c.Request.MultipartForm.File[Field]
	switch {
	case len(files) == 0:
		return nil
	case len(files) > 1:
		c.Flash(web.FlashError, ErrTooMany.Error())
		return web.RedirectBack()
	}
	// Browsers send an empty part when no file was picked.
	if files[0].Filename == "" && files[0].Size == 0 {
		return nil
	}

	name, err := u.Save(c.Ctx(), files[0])
	switch {
	case errors.Is(err, ErrNotImage), errors.Is(err, ErrUnsupported):
		c.Flash(web.FlashError, err.Error())
		return web.RedirectBack()
	case err != nil:
		return web.Fail(err)
	}
	c.Logger().Info().Str("photo", name).Msg("photo stored")
	c.Photo = name
	return nil
}

// Serve writes a stored photo.
func (u *Uploader) Serve(c *web.Context) web.Response {
	data, contentType, err := u.files.Download(c.Ctx(), c.Param("name"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return web.NotFound()
	case err != nil:
		return web.Fail(err)
	}
	c.Writer.Header().Set("Cache-Control", "public, max-age=86400")
	return web.Blob(http.StatusOK, contentType, data)
}
