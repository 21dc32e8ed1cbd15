package transform

import (
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

type decoderFuncs struct {
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

var decoders = map[string]decoderFuncs{
	"jpeg": {jpeg.Decode, jpeg.DecodeConfig},
	"png":  {png.Decode, png.DecodeConfig},
	"gif":  {gif.Decode, gif.DecodeConfig},
	"webp": {webp.Decode, webp.DecodeConfig},
	"bmp":  {bmp.Decode, bmp.DecodeConfig},
	"tiff": {tiff.Decode, tiff.DecodeConfig},
}

type encodeFunc func(w io.Writer, src decoded, quality int) error

// Для webp кодировщика нет.
var encoders = map[string]encodeFunc{
	"jpeg": encodeJPEG,
	"png":  encodePNG,
	"gif":  encodeGIF,
	"bmp":  encodeBMP,
	"tiff": encodeTIFF,
}

func encodeJPEG(w io.Writer, src decoded, quality int) error {
	return jpeg.Encode(w, flatten(src.img), &jpeg.Options{Quality: quality})
}

func encodePNG(w io.Writer, src decoded, _ int) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, src.img)
}

// encodeGIF сохраняет все кадры анимации, если исходник был GIF.
func encodeGIF(w io.Writer, src decoded, _ int) error {
	if src.anim != nil {
		return gif.EncodeAll(w, src.anim)
	}
	return gif.Encode(w, src.img, &gif.Options{NumColors: 256})
}

func encodeBMP(w io.Writer, src decoded, _ int) error {
	return bmp.Encode(w, src.img)
}

func encodeTIFF(w io.Writer, src decoded, _ int) error {
	return tiff.Encode(w, src.img, &tiff.Options{Compression: tiff.Deflate})
}

// flatten накладывает изображение на белый фон: в JPEG нет альфа-канала.
func flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}
