package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotImage 上传内容不是图片
var ErrNotImage = errors.New("not an image")

// SplitDataURL 拆分 "data:image/jpeg;base64,xxxx"，返回声明的 MIME 与 base64 数据
// 非 data URL 时原样返回
func SplitDataURL(payload string) (declaredMime, data string) {
	if !strings.HasPrefix(payload, "data:") {
		return "", payload
	}
	idx := strings.Index(payload, "base64,")
	if idx < 0 {
		return "", payload
	}
	header := strings.TrimPrefix(payload[:idx], "data:")
	header = strings.TrimSuffix(header, ";")
	return header, payload[idx+len("base64,"):]
}

// DecodeImagePayload 解码 base64 图片（可带 data URL 前缀），并按内容嗅探真实类型
func DecodeImagePayload(payload string) ([]byte, string, error) {
	_, data := SplitDataURL(strings.TrimSpace(payload))
	if data == "" {
		return nil, "", fmt.Errorf("empty image payload: %w", ErrNotImage)
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		// 部分浏览器会去掉 padding
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return nil, "", fmt.Errorf("decode base64: %w", err)
		}
	}

	mt := mimetype.Detect(raw)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, mt.String(), fmt.Errorf("detected %s: %w", mt.String(), ErrNotImage)
	}
	return raw, mt.String(), nil
}
