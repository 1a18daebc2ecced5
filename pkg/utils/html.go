package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// 纯文本策略：去掉所有标签，标签处补空格避免单词粘连
var plainTextPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// StripHTML 去掉 HTML 标签并还原实体，压缩空白
func StripHTML(s string) string {
	// BGG 的描述常是二次转义的实体（&amp;#10;），先还原一次再清洗
	text := html.UnescapeString(plainTextPolicy.Sanitize(html.UnescapeString(s)))
	return strings.Join(strings.Fields(text), " ")
}

// Truncate 按字符截断
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
