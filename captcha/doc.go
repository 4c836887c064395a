// Package captcha 管理多个已加载的验证码识别模型。
//
// Handle 封装单个推理会话，负责预处理、CTC 解码与文本拼接；
// Registry 按名称、输入尺寸（支持取整到 10 的模糊匹配）和模型类型选择句柄，
// 找不到时回退到默认句柄（第一个加入的句柄）。
//
//	reg := captcha.NewRegistry(nil)
//	reg.Add(handle)
//	b := img.Bounds()
//	hd := reg.GetByTypeSize(captcha.FormatSize(b.Dx(), b.Dy()), "CNN5", true)
//	texts, err := hd.PredictBatch([]image.Image{img})
package captcha
