package volume

import (
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/mazznoer/colorgrad"
	"golang.org/x/image/draw"

	"fluidsim/core"
)

// Palette maps density bytes to colors
func Palette() color.Palette {
	grad := colorgrad.Viridis()
	pal := color.Palette{}
	for _, c := range grad.Colors(256) {
		pal = append(pal, c)
	}
	return pal
}

// SliceImage renders one plane of the volume through the palette,
// upscaled by zoom with nearest-neighbor sampling. Image row 0 is the
// highest row index so +y points up.
func (v *Volume) SliceImage(axis core.Axis, index, zoom int) (image.Image, error) {
	plane, err := v.Slice(axis, index)
	if err != nil {
		return nil, err
	}
	if zoom < 1 {
		zoom = 1
	}

	S := v.Size
	src := image.NewPaletted(image.Rect(0, 0, S, S), Palette())
	for row := 0; row < S; row++ {
		for col := 0; col < S; col++ {
			src.SetColorIndex(col, S-1-row, plane[row*S+col])
		}
	}
	if zoom == 1 {
		return src, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, S*zoom, S*zoom))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// WriteSlicePNG encodes SliceImage as PNG
func (v *Volume) WriteSlicePNG(w io.Writer, axis core.Axis, index, zoom int) error {
	img, err := v.SliceImage(axis, index, zoom)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
