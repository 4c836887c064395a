package captcha

import (
	"errors"
	"slices"
	"sync"

	"github.com/getcharzp/captcha-ocr/internal/metrics"
	"github.com/rs/zerolog"
)

// Registry 按名称、尺寸和类型选择模型句柄。
// 句柄按插入顺序排列，第 0 个为默认句柄；句柄以名称作为唯一标识。
type Registry struct {
	mu      sync.RWMutex
	handles []*Handle
	logger  zerolog.Logger
}

// Option 注册表选项
type Option func(*Registry)

// WithLogger 设置日志记录器
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry 创建注册表，def 不为空时作为默认句柄
func NewRegistry(def *Handle, opts ...Option) *Registry {
	r := &Registry{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	if def != nil {
		r.SetDefault(def)
	}
	return r
}

// indexOf 调用方需持有锁
func (r *Registry) indexOf(h *Handle) int {
	if h == nil {
		return -1
	}
	return slices.IndexFunc(r.handles, func(x *Handle) bool { return x.Name() == h.Name() })
}

// Add 将句柄追加到末尾，已存在同名句柄时不做任何操作
func (r *Registry) Add(h *Handle) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(h) >= 0 {
		return false
	}
	r.handles = append(r.handles, h)
	metrics.AddHandles(1)
	r.logger.Debug().Str("name", h.Name()).Str("size", h.Size()).Str("type", string(h.Type())).Msg("添加模型句柄")
	return true
}

// Remove 销毁并移除句柄，句柄不存在时不做任何操作
func (r *Registry) Remove(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(h)
	if i < 0 {
		return false
	}
	target := r.handles[i]
	if err := target.Destroy(); err != nil {
		r.logger.Warn().Err(err).Str("name", target.Name()).Msg("销毁模型句柄失败")
	}
	r.handles = slices.Delete(r.handles, i, i+1)
	metrics.AddHandles(-1)
	r.logger.Info().Str("name", target.Name()).Msg("移除模型句柄")
	return true
}

// RemoveByName 按名称移除句柄。名称不存在时不会回退到默认句柄。
func (r *Registry) RemoveByName(name string) bool {
	return r.Remove(r.GetByName(name, false))
}

// GetByName 按名称精确查找
func (r *Registry) GetByName(name string, returnDefault bool) *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handles {
		if h.Name() == name {
			metrics.ObserveLookup("name", metrics.ResultExact)
			return h
		}
	}
	return r.fallback("name", returnDefault)
}

// GetBySize 先按尺寸精确匹配，再做模糊匹配
func (r *Registry) GetBySize(size string, returnDefault bool) *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handles {
		if h.Size() == size {
			metrics.ObserveLookup("size", metrics.ResultExact)
			return h
		}
	}
	for _, h := range r.handles {
		if SizeFuzzyMatch(h.Size(), size) {
			metrics.ObserveLookup("size", metrics.ResultFuzzy)
			return h
		}
	}
	return r.fallback("size", returnDefault)
}

// GetByType 按模型类型精确查找
func (r *Registry) GetByType(modelType ModelType, returnDefault bool) *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h := r.findType(modelType); h != nil {
		metrics.ObserveLookup("type", metrics.ResultExact)
		return h
	}
	return r.fallback("type", returnDefault)
}

// GetByTypeSize 依次尝试：尺寸与类型均精确匹配；尺寸模糊匹配且类型精确匹配；
// 仅按类型匹配（忽略尺寸）。类型正确优先于尺寸正确。
func (r *Registry) GetByTypeSize(size string, modelType ModelType, returnDefault bool) *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.handles {
		if h.Size() == size && h.Type() == modelType {
			metrics.ObserveLookup("type_size", metrics.ResultExact)
			return h
		}
	}
	for _, h := range r.handles {
		if SizeFuzzyMatch(h.Size(), size) && h.Type() == modelType {
			metrics.ObserveLookup("type_size", metrics.ResultFuzzy)
			return h
		}
	}
	if h := r.findType(modelType); h != nil {
		metrics.ObserveLookup("type_size", metrics.ResultType)
		return h
	}
	return r.fallback("type_size", returnDefault)
}

func (r *Registry) findType(modelType ModelType) *Handle {
	for _, h := range r.handles {
		if h.Type() == modelType {
			return h
		}
	}
	return nil
}

// fallback 调用方需持有锁
func (r *Registry) fallback(method string, returnDefault bool) *Handle {
	if returnDefault && len(r.handles) > 0 {
		metrics.ObserveLookup(method, metrics.ResultDefault)
		return r.handles[0]
	}
	metrics.ObserveLookup(method, metrics.ResultMiss)
	return nil
}

// Default 默认句柄，注册表为空时返回 nil
func (r *Registry) Default() *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.handles) == 0 {
		return nil
	}
	return r.handles[0]
}

// DefaultName 默认句柄的名称，注册表为空时返回空字符串
func (r *Registry) DefaultName() string {
	if h := r.Default(); h != nil {
		return h.Name()
	}
	return ""
}

// SetDefault 将句柄置于首位作为默认句柄。
// 已注册同一实例时移到首位；已注册同名的其他实例时由 h 替换并销毁旧实例。
func (r *Registry) SetDefault(h *Handle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(h); i >= 0 {
		old := r.handles[i]
		r.handles = slices.Delete(r.handles, i, i+1)
		if old != h {
			if err := old.Destroy(); err != nil {
				r.logger.Warn().Err(err).Str("name", old.Name()).Msg("销毁被替换的模型句柄失败")
			}
			r.logger.Info().Str("name", h.Name()).Msg("替换同名模型句柄")
		}
	} else {
		metrics.AddHandles(1)
	}
	r.handles = slices.Insert(r.handles, 0, h)
	r.logger.Info().Str("name", h.Name()).Msg("设置默认模型")
}

// Len 已注册句柄数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Handles 按顺序返回全部句柄的副本
func (r *Registry) Handles() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.handles)
}

// Close 销毁全部句柄并清空注册表
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, h := range r.handles {
		if err := h.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	r.logger.Info().Int("count", len(r.handles)).Msg("释放全部模型句柄")
	metrics.AddHandles(-len(r.handles))
	r.handles = nil
	return errors.Join(errs...)
}
