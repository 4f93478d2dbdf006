package resource

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const defaultSVGSize = 512

// maxRasterDim limits SVG rasterization buffer, a hostile viewBox would
// otherwise allocate gigabytes.
var maxRasterDim = 4096

// Image is decoded image data in a format PDF writer can embed directly.
type Image struct {
	Data   []byte
	Type   string // "jpg", "png" or "gif"
	Width  int    // natural size in pixels
	Height int
}

// DecodeImage prepares resource content for embedding. JPEG, PNG and GIF are
// kept as is, SVG is rasterized, everything else decodable is converted to
// PNG.
func (r *Resource) DecodeImage() (*Image, error) {
	data, err := r.Read()
	if err != nil {
		return nil, err
	}

	if strings.HasSuffix(strings.ToLower(r.MimeType), "svg+xml") || r.Ext() == "svg" {
		img, err := rasterizeSVG(data)
		if err != nil {
			return nil, fmt.Errorf("unable to rasterize svg: %w", err)
		}
		return encodePNG(img)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to decode image: %w", err)
	}
	switch format {
	case "jpeg":
		return &Image{Data: data, Type: "jpg", Width: cfg.Width, Height: cfg.Height}, nil
	case "png", "gif":
		return &Image{Data: data, Type: format, Width: cfg.Width, Height: cfg.Height}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s image: %w", format, err)
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) (*Image, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("unable to encode png: %w", err)
	}
	b := img.Bounds()
	return &Image{Data: buf.Bytes(), Type: "png", Width: b.Dx(), Height: b.Dy()}, nil
}

func rasterizeSVG(data []byte) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	w := int(math.Ceil(icon.ViewBox.W))
	h := int(math.Ceil(icon.ViewBox.H))
	if w <= 0 {
		w = defaultSVGSize
	}
	if h <= 0 {
		h = defaultSVGSize
	}
	if w > maxRasterDim || h > maxRasterDim {
		s := min(float64(maxRasterDim)/float64(w), float64(maxRasterDim)/float64(h))
		w = max(int(math.Round(float64(w)*s)), 1)
		h = max(int(math.Round(float64(h)*s)), 1)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return dst, nil
}
