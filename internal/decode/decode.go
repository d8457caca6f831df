package decode

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

var (
	// ErrDecode 标记所有解码失败。
	ErrDecode = errors.New("decode failed")
	// ErrUnknownFormat 表示没有为格式标签注册解码器。
	ErrUnknownFormat = errors.New("unknown format")
)

// Options 为透传给解码器的参数，例如 {"sep": ",", "header": false}。
type Options map[string]any

// Input 是待解码的内容，Name 为文件名或路径，部分解码器据此推断格式。
type Input struct {
	Reader io.Reader
	Name   string
}

// Decoder 将 Input 解码为内存对象。
type Decoder interface {
	Decode(in Input, opts Options) (any, error)
}

// DecoderFunc 让普通函数满足 Decoder。
type DecoderFunc func(in Input, opts Options) (any, error)

func (f DecoderFunc) Decode(in Input, opts Options) (any, error) {
	return f(in, opts)
}

// DecodeError 记录格式、文件与失败原因。Detected 为内容探测出的 MIME 类型（可能为空）。
type DecodeError struct {
	Format   string
	Path     string
	Detected string
	Err      error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("decode %s as %s: %v", e.Path, e.Format, e.Err)
	if e.Detected != "" {
		msg += fmt.Sprintf(" (content looks like %s)", e.Detected)
	}
	return msg
}

// Unwrap 同时暴露 ErrDecode 与底层原因。
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

var globalRegistry = newRegistry()

type registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

func newRegistry() *registry {
	return &registry{decoders: make(map[string]Decoder)}
}

// Register 为格式标签注册解码器，重复注册返回错误。
func Register(format string, decoder Decoder) error {
	return globalRegistry.register(format, decoder)
}

// MustRegister 在注册失败时 panic，适合 init() 中调用。
func MustRegister(format string, decoder Decoder) {
	if err := Register(format, decoder); err != nil {
		panic(err)
	}
}

// Resolve 返回格式标签对应的解码器，大小写不敏感。
func Resolve(format string) (Decoder, bool) {
	return globalRegistry.resolve(format)
}

// Formats 返回已注册格式标签的有序列表。
func Formats() []string {
	return globalRegistry.formats()
}

// Decode 使用 format 对应的解码器处理 in，失败时总是返回 *DecodeError。
func Decode(format string, in Input, opts Options) (any, error) {
	decoder, ok := Resolve(format)
	if !ok {
		return nil, &DecodeError{Format: format, Path: in.Name, Err: fmt.Errorf("%w: %q", ErrUnknownFormat, format)}
	}
	value, err := decoder.Decode(in, opts)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &DecodeError{Format: normalizeFormat(format), Path: in.Name, Err: err}
	}
	return value, nil
}

func normalizeFormat(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}

func (r *registry) register(format string, decoder Decoder) error {
	key := normalizeFormat(format)
	if key == "" {
		return fmt.Errorf("format is required")
	}
	if decoder == nil {
		return fmt.Errorf("decoder for %s is nil", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.decoders[key]; exists {
		return fmt.Errorf("format %s already registered", key)
	}
	r.decoders[key] = decoder
	return nil
}

func (r *registry) resolve(format string) (Decoder, bool) {
	key := normalizeFormat(format)
	if key == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	decoder, ok := r.decoders[key]
	return decoder, ok
}

func (r *registry) formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.decoders))
	for key := range r.decoders {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// decodeOptions 将 opts 覆盖到 target 的默认值上，未知键与类型错误都会报错。
func decodeOptions(opts Options, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(opts)); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}
