// Package thumbnails generates a PNG thumbnail for every image uploaded to a bucket.
package thumbnails

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/outofoffice3/aws-samples/hermes/internal/blob"
	"github.com/outofoffice3/aws-samples/hermes/internal/bus"
	"github.com/outofoffice3/aws-samples/hermes/internal/event"
	"github.com/outofoffice3/aws-samples/hermes/internal/handlers"
	"github.com/outofoffice3/aws-samples/hermes/internal/logger"
	"github.com/outofoffice3/aws-samples/hermes/internal/registry"
	sharedtypes "github.com/outofoffice3/aws-samples/hermes/internal/shared/types"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// error msgs
	BlobsNilErrMsg = "blob store is nil"

	Prefix         = "thumb_"
	MaxWidth       = 200
	MaxHeight      = 200
	ContentType    = "image/png"
	CompleteType   = "thumbnail.complete"
	CompleteSource = "hermes.thumbnails"
)

type ThumbnailHandler struct {
	Blobs     blob.Store
	Publisher bus.Publisher
	Logger    logger.Logger
}

type ThumbnailHandlerConfig struct {
	Blobs blob.Store
	// Publisher is optional; without one no completion event is sent.
	Publisher bus.Publisher
	Logger    logger.Logger
}

func NewThumbnailHandler(config ThumbnailHandlerConfig) (*ThumbnailHandler, error) {
	if config.Logger == nil {
		config.Logger = logger.Get()
	}
	if config.Blobs == nil {
		return nil, handlers.LogAndReturnError(errors.New(BlobsNilErrMsg), config.Logger)
	}
	return &ThumbnailHandler{
		Blobs:     config.Blobs,
		Publisher: config.Publisher,
		Logger:    config.Logger,
	}, nil
}

func (h *ThumbnailHandler) Register(r *registry.Registry) error {
	const name = "generatethumbnail"
	return r.Register(registry.Registration{
		Kind:    event.ObjectFinalized,
		Name:    name,
		Style:   registry.StyleTrigger,
		Handler: registry.Trigger(name, h.HandleObjectFinalized, h.Logger),
	})
}

// ThumbnailKey returns "<dir>/thumb_<stem>.png" for an object name.
func ThumbnailKey(name string) string {
	dir, file := path.Split(name)
	stem := strings.TrimSuffix(file, path.Ext(file))
	return dir + Prefix + stem + ".png"
}

// IsThumbnail reports whether name was written by this handler.
func IsThumbnail(name string) bool {
	return strings.HasPrefix(path.Base(name), Prefix)
}

// Fit scales src down to fit inside maxW x maxH keeping its aspect ratio.
// Images already inside the box are returned unchanged.
func Fit(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return src
	}
	nw, nh := maxW, h*maxW/w
	if nh > maxH {
		nw, nh = w*maxH/h, maxH
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// Render decodes an image and returns the encoded PNG thumbnail.
func Render(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Fit(src, MaxWidth, MaxHeight)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func (h *ThumbnailHandler) HandleObjectFinalized(ctx context.Context, env event.Envelope) error {
	obj, err := event.Decode[sharedtypes.StorageObject](env)
	if err != nil {
		return err
	}
	if IsThumbnail(obj.Name) {
		h.Logger.Info("Already a Thumbnail: %s", obj.Name)
		return nil
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType, err = h.Blobs.ContentType(ctx, obj.Bucket, obj.Name)
		if err != nil {
			return err
		}
	}
	if !strings.HasPrefix(contentType, "image/") {
		h.Logger.Info("This is not an image: %s", obj.Name)
		return nil
	}

	src, err := h.Blobs.Download(ctx, obj.Bucket, obj.Name)
	if err != nil {
		return err
	}
	h.Logger.Info("Image downloaded: %s", obj.Name)
	thumb, err := Render(src.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", obj.Name, err)
	}
	key := ThumbnailKey(obj.Name)
	if err := h.Blobs.Upload(ctx, obj.Bucket, key, thumb, ContentType); err != nil {
		return err
	}
	h.Logger.Info("Thumbnail uploaded: %s", key)

	if h.Publisher == nil {
		return nil
	}
	return h.Publisher.Publish(ctx, bus.Event{
		Type:    CompleteType,
		Source:  CompleteSource,
		Subject: obj.Name,
		Data: map[string]string{
			"bucket":   obj.Bucket,
			"original": obj.Name,
			"name":     key,
		},
	})
}
