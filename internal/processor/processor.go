package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"golang.org/x/image/font/basicfont"

	// Register the WebP decoder so WebP uploads can be re-encoded too.
	_ "golang.org/x/image/webp"

	"github.com/aliskhannn/image-optimizer/internal/model"
)

// ErrTransform wraps every decode, encode and IO failure of a transform step.
var ErrTransform = errors.New("transform failed")

const watermarkMargin = 10.0

// fileStorage defines the interface for file storage.
// Steps read their input and write their output through it.
type fileStorage interface {
	Save(path string, src io.Reader) error
	Load(path string) (io.ReadCloser, error)
}

// Processor runs single transform steps: it decodes a stored image,
// optionally resizes and watermarks it and writes the re-encoded result.
type Processor struct {
	fileStorage fileStorage
}

// New creates a new Processor with the given file storage backend.
func New(fs fileStorage) *Processor {
	return &Processor{fileStorage: fs}
}

// OptimizeJPEG re-encodes src as a JPEG at opts.Quality and writes it to dst.
func (p *Processor) OptimizeJPEG(_ context.Context, src, dst string, opts model.EncodeOptions) error {
	img, err := p.prepare(src, opts)
	if err != nil {
		return err
	}

	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
		return fmt.Errorf("%w: encode jpeg: %w", ErrTransform, err)
	}

	if err := p.fileStorage.Save(dst, buf); err != nil {
		return fmt.Errorf("%w: %w", ErrTransform, err)
	}

	return nil
}

// ConvertWebP re-encodes src as a lossy WebP at opts.Quality using
// opts.Effort as the compression method and writes it to dst.
func (p *Processor) ConvertWebP(_ context.Context, src, dst string, opts model.EncodeOptions) error {
	img, err := p.prepare(src, opts)
	if err != nil {
		return err
	}

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(opts.Quality))
	if err != nil {
		return fmt.Errorf("%w: webp options: %w", ErrTransform, err)
	}
	options.Method = opts.Effort

	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, options); err != nil {
		return fmt.Errorf("%w: encode webp: %w", ErrTransform, err)
	}

	if err := p.fileStorage.Save(dst, buf); err != nil {
		return fmt.Errorf("%w: %w", ErrTransform, err)
	}

	return nil
}

// prepare loads and decodes src and applies the optional resize and watermark.
func (p *Processor) prepare(src string, opts model.EncodeOptions) (image.Image, error) {
	srcReader, err := p.fileStorage.Load(src)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load image: %w", ErrTransform, err)
	}
	defer srcReader.Close()

	img, err := imaging.Decode(srcReader, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %w", ErrTransform, err)
	}

	if opts.Width > 0 || opts.Height > 0 {
		w, h := resizeBounds(img.Bounds(), opts.Width, opts.Height)
		if w > model.MaxDimension || h > model.MaxDimension {
			return nil, fmt.Errorf("%w: resize to %dx%d exceeds %d pixels", ErrTransform, w, h, model.MaxDimension)
		}
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	if opts.Watermark != "" {
		img = watermark(img, opts.Watermark)
	}

	return img, nil
}

// resizeBounds returns the output size of a resize to w x h, filling a zero
// side from the aspect ratio of b the way imaging.Resize does.
func resizeBounds(b image.Rectangle, w, h int) (int, int) {
	if w > model.MaxDimension || h > model.MaxDimension || b.Dx() == 0 || b.Dy() == 0 {
		return w, h
	}

	ratio := float64(b.Dx()) / float64(b.Dy())
	if w == 0 {
		w = int(math.Max(1, math.Floor(float64(h)*ratio+0.5)))
	}
	if h == 0 {
		h = int(math.Max(1, math.Floor(float64(w)/ratio+0.5)))
	}

	return w, h
}

// watermark draws text in the bottom-right corner.
func watermark(img image.Image, text string) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(color.White)

	x := float64(dc.Width()) - watermarkMargin
	y := float64(dc.Height()) - watermarkMargin

	dc.DrawStringAnchored(text, x, y, 1, 1)

	return dc.Image()
}
