// Package testimg генерирует изображения в памяти для тестов.
package testimg

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/bmp"
)

// Gradient возвращает RGBA-изображение с градиентом и шумом, чтобы
// кодеки с потерями давали заметно разные размеры при разном качестве.
func Gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := uint8((x*7 + y*13) % 31)
			img.Set(x, y, color.RGBA{
				R: uint8(x*255/max(w, 1)) ^ n,
				G: uint8(y*255/max(h, 1)) ^ n,
				B: uint8((x+y)*127/max(w+h, 1)) + n,
				A: 255,
			})
		}
	}
	return img
}

// PNG кодирует градиент в PNG без сжатия, чтобы повторное кодирование уменьшало размер.
func PNG(w, h int) []byte {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&buf, Gradient(w, h)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEG кодирует градиент в JPEG с заданным качеством.
func JPEG(w, h, quality int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: quality}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// GIF кодирует анимацию из frames кадров.
func GIF(w, h, frames int) []byte {
	anim := &gif.GIF{}
	for i := 0; i < frames; i++ {
		src := Gradient(w, h)
		pal := image.NewPaletted(src.Bounds(), []color.Color{
			color.White, color.Black, color.RGBA{R: 255, A: 255}, color.RGBA{G: 255, A: 255},
		})
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				pal.SetColorIndex(x, y, uint8((x+y+i)%4))
			}
		}
		anim.Image = append(anim.Image, pal)
		anim.Delay = append(anim.Delay, 10)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// BMP кодирует градиент в BMP.
func BMP(w, h int) []byte {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, Gradient(w, h)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// CorruptPNG возвращает данные с корректной сигнатурой PNG, но повреждённым телом.
func CorruptPNG() []byte {
	data := PNG(16, 16)
	out := make([]byte, 64)
	copy(out, data[:32])
	for i := 32; i < len(out); i++ {
		out[i] = 0xAB
	}
	return out
}

// TTF возвращает начало файла шрифта TrueType.
func TTF() []byte {
	data := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x0C, 0x00, 0x80, 0x00, 0x03, 0x00, 0x40}
	data = append(data, []byte("OS/2glyfheadhheahmtxlocamaxpname")...)
	return append(data, make([]byte, 256)...)
}

// BrokenWebP возвращает контейнер RIFF/WEBP с нечитаемым кадром VP8.
func BrokenWebP() []byte {
	data := []byte("RIFF\x24\x00\x00\x00WEBPVP8 \x18\x00\x00\x00")
	return append(data, make([]byte, 24)...)
}

// TransparentPNG возвращает полностью прозрачное изображение.
func TransparentPNG(w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
