// Package metrics 定义识别过程的 Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// 查找结果分类
const (
	ResultExact   = "exact"
	ResultFuzzy   = "fuzzy"
	ResultType    = "type"
	ResultDefault = "default"
	ResultMiss    = "miss"
)

var (
	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "captcha_ocr",
			Subsystem: "registry",
			Name:      "lookups_total",
			Help:      "Total number of model handle lookups by method and result",
		},
		[]string{"method", "result"},
	)

	handlesLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "captcha_ocr",
			Subsystem: "registry",
			Name:      "handles",
			Help:      "Number of model handles currently registered across all registries",
		},
	)

	predictDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "captcha_ocr",
			Subsystem: "predict",
			Name:      "batch_duration_seconds",
			Help:      "Duration of predict batch calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	imagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "captcha_ocr",
			Subsystem: "predict",
			Name:      "images_total",
			Help:      "Total number of images recognized",
		},
		[]string{"model", "status"},
	)
)

func init() {
	prometheus.MustRegister(lookupsTotal, handlesLoaded, predictDuration, imagesTotal)
}

// ObserveLookup 记录一次查找
func ObserveLookup(method, result string) {
	lookupsTotal.WithLabelValues(method, result).Inc()
}

// AddHandles 按增量更新已注册句柄数量，多个注册表共用同一指标
func AddHandles(delta int) {
	handlesLoaded.Add(float64(delta))
}

// Handles 当前已注册句柄数量
func Handles() float64 {
	var m dto.Metric
	if err := handlesLoaded.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// ObservePredict 记录一次批量识别
func ObservePredict(model string, images int, dur time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	predictDuration.WithLabelValues(model).Observe(dur.Seconds())
	imagesTotal.WithLabelValues(model, status).Add(float64(images))
}

// WriteTextfile 将默认注册表中的指标以文本格式写入文件（node_exporter textfile 格式）
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
