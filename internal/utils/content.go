package utils

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// 评论只存纯文本：剥离所有标签，再把 bluemonday 转义出的实体还原，
// 避免前端二次转义出现 &amp;。
var strictPolicy = bluemonday.StrictPolicy()

// CleanContent 去掉 HTML 标签并裁剪首尾空白。
func CleanContent(s string) string {
	cleaned := strictPolicy.Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// RuneLen 按字符而不是字节计算长度。
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}
