package model

import "strings"

// NormalizeSectionKind 旧库中未知的类型一律按 terms 处理
func NormalizeSectionKind(kind *string) string {
	if kind != nil && *kind == SectionKindDocument {
		return SectionKindDocument
	}
	return SectionKindTerms
}

// NormalizeFormat 返回规范化后的格式，无法识别时返回空串
func NormalizeFormat(hint string) string {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case FormatPDF:
		return FormatPDF
	case FormatDOCX:
		return FormatDOCX
	case FormatDOC:
		return FormatDOC
	}
	return ""
}

func MimeTypeForFormat(format string) string {
	switch format {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatDOC:
		return "application/msword"
	}
	return "application/octet-stream"
}

// DocumentKey 文档的规范身份
type DocumentKey struct {
	SectionID uint
	Code      string
}
