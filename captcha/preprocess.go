package captcha

import (
	"image"
	"image/color"

	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/draw"
)

// flatten 将图像绘制到白色背景上，去除透明通道的影响
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Over)
	return canvas
}

// preprocess 将一批图像缩放到模型输入尺寸并归一化到 [0, 1]
func preprocess(images []image.Image, conf *ModelConfig, width, height int) ([]float32, []int64) {
	channels := conf.Channels
	area := width * height
	inputData := make([]float32, len(images)*area*channels)

	for b, img := range images {
		dstImg := imageutil.Resize(flatten(img), width, height)
		base := b * area * channels

		if channels == 1 {
			grayImg := imageutil.Grayscale(dstImg)
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					pix := grayImg.Pix[y*grayImg.Stride+x]
					// 单通道时 NHWC 与 NCHW 排布一致
					inputData[base+y*width+x] = float32(pix) / 255.0
				}
			}
			continue
		}

		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, g, bl, _ := dstImg.At(x, y).RGBA()
				rgb := [3]float32{float32(r>>8) / 255.0, float32(g>>8) / 255.0, float32(bl>>8) / 255.0}
				for c := 0; c < 3; c++ {
					if conf.Layout == LayoutNCHW {
						inputData[base+c*area+y*width+x] = rgb[c]
					} else {
						inputData[base+(y*width+x)*3+c] = rgb[c]
					}
				}
			}
		}
	}

	n, h, w, c := int64(len(images)), int64(height), int64(width), int64(channels)
	if conf.Layout == LayoutNCHW {
		return inputData, []int64{n, c, h, w}
	}
	return inputData, []int64{n, h, w, c}
}
