package main

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"text/tabwriter"

	"github.com/getcharzp/captcha-ocr/captcha"
	"github.com/spf13/cobra"
	"github.com/up-zero/gotool/imageutil"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "列出已加载的模型",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func() error {
				return printModels(cmd.OutOrStdout(), a.reg)
			})
		},
	}
}

func printModels(w io.Writer, reg *captcha.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tTYPE\tDEFAULT")
	def := reg.DefaultName()
	for _, h := range reg.Handles() {
		mark := ""
		if h.Name() == def {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.Name(), h.Size(), h.Type(), mark)
	}
	return tw.Flush()
}

func newResolveCmd(a *app) *cobra.Command {
	var (
		name, size, modelType string
		noDefault             bool
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "按名称、尺寸或类型查找模型",
		Example: "  captcha-ocr resolve --size 100x30\n" +
			"  captcha-ocr resolve --size 100x30 --type digits --no-default",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRegistry(func() error {
				h := lookup(a.reg, name, size, captcha.ModelType(modelType), !noDefault)
				if h == nil {
					return fmt.Errorf("未找到匹配的模型")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", h.Name(), h.Size(), h.Type())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "模型名称")
	cmd.Flags().StringVar(&size, "size", "", "图片尺寸，如 100x30")
	cmd.Flags().StringVar(&modelType, "type", "", "模型类型")
	cmd.Flags().BoolVar(&noDefault, "no-default", false, "未命中时不回退到默认模型")
	return cmd
}

// lookup 名称优先，其次类型加尺寸、尺寸、类型，都为空时返回默认模型
func lookup(reg *captcha.Registry, name, size string, modelType captcha.ModelType, returnDefault bool) *captcha.Handle {
	switch {
	case name != "":
		return reg.GetByName(name, returnDefault)
	case size != "" && modelType != "":
		return reg.GetByTypeSize(size, modelType, returnDefault)
	case size != "":
		return reg.GetBySize(size, returnDefault)
	case modelType != "":
		return reg.GetByType(modelType, returnDefault)
	default:
		return reg.Default()
	}
}

func newPredictCmd(a *app) *cobra.Command {
	var name, modelType, splitChar string
	cmd := &cobra.Command{
		Use:     "predict <image>...",
		Short:   "识别验证码图片",
		Example: "  captcha-ocr predict a.png b.jpg --type digits",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			splitSet := cmd.Flags().Changed("split-char")
			images := make([]image.Image, len(args))
			for i, p := range args {
				img, err := imageutil.Open(p)
				if err != nil {
					return fmt.Errorf("读取图片 %s 失败: %w", p, err)
				}
				images[i] = img
			}
			return a.withRegistry(func() error {
				var opts []captcha.PredictOption
				if splitSet {
					opts = append(opts, captcha.WithSplitChar(splitChar))
				}
				texts, err := predict(a.reg, images, name, captcha.ModelType(modelType), opts...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for i, p := range args {
					fmt.Fprintf(out, "%s\t%s\n", p, texts[i])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "model", "", "指定模型名称，为空时按图片尺寸选择")
	cmd.Flags().StringVar(&modelType, "type", "", "模型类型")
	cmd.Flags().StringVar(&splitChar, "split-char", "", "覆盖模型配置中的字符分隔符")
	return cmd
}

// predict 为每张图片选择模型，同一模型的图片合并为一个批次
func predict(reg *captcha.Registry, images []image.Image, name string, modelType captcha.ModelType, opts ...captcha.PredictOption) ([]string, error) {
	var (
		order  []*captcha.Handle
		groups = make(map[*captcha.Handle][]int)
	)
	for i, img := range images {
		b := img.Bounds()
		h := lookup(reg, name, captcha.FormatSize(b.Dx(), b.Dy()), modelType, name == "")
		if h == nil {
			return nil, fmt.Errorf("图片 %d: 未找到匹配的模型", i)
		}
		if _, ok := groups[h]; !ok {
			order = append(order, h)
		}
		groups[h] = append(groups[h], i)
	}

	texts := make([]string, len(images))
	for _, h := range order {
		idx := groups[h]
		batch := make([]image.Image, len(idx))
		for j, i := range idx {
			batch[j] = images[i]
		}
		res, err := h.PredictBatch(batch, opts...)
		if err != nil {
			return nil, fmt.Errorf("模型 %s 识别失败: %w", h.Name(), err)
		}
		for j, i := range idx {
			texts[i] = res[j]
		}
	}
	return texts, nil
}

func newMatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "match <size> <size>",
		Short:   "判断两个尺寸是否模糊匹配",
		Example: "  captcha-ocr match 100x30 98x33",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), captcha.SizeFuzzyMatch(args[0], args[1]))
			return nil
		},
	}
}
