package admincomment

import (
	"net/url"
	"regexp"
	"strings"
)

// ProtectedLink rewrites a stored attachment URL to the protected download
// route. Only the file name survives; the storage path never does.
func ProtectedLink(raw string) string {
	name := AttachmentFileName(raw)
	if name == "" {
		return ""
	}
	return "/approvals/attachments/" + url.PathEscape(name) + "/download"
}

// AttachmentFileName returns the last path segment of raw, without query or fragment
func AttachmentFileName(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		raw = u.EscapedPath()
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimRight(raw, "/")
	if i := strings.LastIndexAny(raw, `/\`); i >= 0 {
		raw = raw[i+1:]
	}
	if name, err := url.PathUnescape(raw); err == nil {
		raw = name
	}
	if raw == "." || raw == ".." {
		return ""
	}
	return raw
}

// Protect rewrites the attachment URL inside a raw comment to its protected link
func Protect(comment string) string {
	p := Parse(comment)
	if p.AttachmentURL == "" {
		return comment
	}
	i := strings.LastIndex(comment, p.AttachmentURL)
	return comment[:i] + ProtectedLink(p.AttachmentURL) + comment[i+len(p.AttachmentURL):]
}

var actualPriceTagRe = regexp.MustCompile(`(?i)\[ACTUAL_PRICE:[^\]]*\]`)

// RedactActualPrice replaces the ACTUAL_PRICE tag value with a fixed mask
func RedactActualPrice(comment string) string {
	return actualPriceTagRe.ReplaceAllString(comment, "[ACTUAL_PRICE:XXXXXX]")
}
