package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxBytes is the per-image size budget after normalization.
	DefaultMaxBytes = 1 << 20
	// DefaultMaxDimension bounds both width and height; images are only shrunk.
	DefaultMaxDimension = 1920

	startQuality = 80
	qualityStep  = 10
	minQuality   = 10

	// MaxEncodePasses is the most JPEG encodes one Normalize call performs.
	MaxEncodePasses = (startQuality-minQuality)/qualityStep + 1
)

// ErrUndecodableOverBudget is returned when the input cannot be decoded and is
// already larger than the budget, so there is nothing valid to hand back.
var ErrUndecodableOverBudget = errors.New("image could not be decoded and exceeds the size budget")

// Blob is a named piece of binary content.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns len(Data).
func (b Blob) Size() int64 { return int64(len(b.Data)) }

// Constraints bound the output of a Normalizer.
type Constraints struct {
	MaxBytes     int
	MaxDimension int
}

// DefaultConstraints are the limits used for listing photos.
func DefaultConstraints() Constraints {
	return Constraints{MaxBytes: DefaultMaxBytes, MaxDimension: DefaultMaxDimension}
}

// Normalizer turns arbitrary image bytes into a JPEG that satisfies the constraints.
type Normalizer interface {
	Normalize(ctx context.Context, in Blob, c Constraints) (Blob, error)
}

// JPEGNormalizer decodes, downscales, flattens and re-encodes with a
// descending quality until the byte budget is met or the quality floor is hit.
type JPEGNormalizer struct {
	// Encode defaults to jpeg.Encode.
	Encode func(w io.Writer, m image.Image, o *jpeg.Options) error
}

func (n JPEGNormalizer) Normalize(ctx context.Context, in Blob, c Constraints) (Blob, error) {
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.MaxDimension <= 0 {
		c.MaxDimension = DefaultMaxDimension
	}

	// phone cameras store portrait shots sideways plus an EXIF orientation tag
	src, err := imaging.Decode(bytes.NewReader(in.Data), imaging.AutoOrientation(true))
	if err != nil {
		if len(in.Data) > c.MaxBytes {
			return Blob{}, fmt.Errorf("%w: %s (%d bytes)", ErrUndecodableOverBudget, in.Name, len(in.Data))
		}
		return Relabel(in), nil
	}
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	canvas := flatten(resizeToFit(src, c.MaxDimension, c.MaxDimension))

	encode := n.Encode
	if encode == nil {
		encode = jpeg.Encode
	}
	var buf bytes.Buffer
	for pass, q := 1, startQuality; ; pass, q = pass+1, q-qualityStep {
		if err := ctx.Err(); err != nil {
			return Blob{}, err
		}
		buf.Reset()
		if err := encode(&buf, canvas, &jpeg.Options{Quality: q}); err != nil {
			return Blob{}, fmt.Errorf("encode %s at quality %d: %w", in.Name, q, err)
		}
		if buf.Len() <= c.MaxBytes || pass >= MaxEncodePasses {
			break
		}
	}

	return Blob{
		Name:        jpgName(in.Name),
		ContentType: "image/jpeg",
		Data:        append([]byte(nil), buf.Bytes()...),
	}, nil
}

// Relabel passes the original bytes through under a JPEG name and type.
func Relabel(in Blob) Blob {
	return Blob{Name: jpgName(in.Name), ContentType: "image/jpeg", Data: in.Data}
}

// resizeToFit scales img to fit within maxW×maxH preserving aspect ratio.
// Images that already fit are returned unchanged.
func resizeToFit(img image.Image, maxW, maxH int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	nw := max(int(float64(w)*scale), 1)
	nh := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// flatten composites img onto an opaque white canvas; JPEG has no alpha.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Over)
	return dst
}

func jpgName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == "/" || base == "" {
		return "image.jpg"
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "image"
	}
	return stem + ".jpg"
}
