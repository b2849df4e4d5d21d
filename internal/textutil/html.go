// Package textutil 提供邮件正文的纯文本化处理。
package textutil

import (
	"html"
	"regexp"
	"strings"
)

var (
	scriptRegex = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</\s*(script|style)\s*>`)
	breakRegex  = regexp.MustCompile(`(?i)<(br|/p|/div|/tr|/li|/h[1-6])[^>]*>`)
	tagRegex    = regexp.MustCompile(`(?s)<[^>]*>`)
	blankRegex  = regexp.MustCompile(`\n{3,}`)
	spaceRegex  = regexp.MustCompile(`[ \t]+`)
)

// StripHTML 将 HTML 正文转换为可读纯文本：去除标签与脚本，
// 块级元素结尾转换为换行，HTML 实体还原，多余空白压缩。
// 输入为空时返回空串，任何输入都不会报错。
func StripHTML(htmlBody string) string {
	if htmlBody == "" {
		return ""
	}

	text := scriptRegex.ReplaceAllString(htmlBody, "")
	text = breakRegex.ReplaceAllString(text, "\n")
	text = tagRegex.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	// 压缩空白，保留段落换行
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRegex.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRegex.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// Snippet 截取正文摘要，超出 limit 的部分以省略号结尾。用于通知文案。
func Snippet(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
