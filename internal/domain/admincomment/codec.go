// Package admincomment encodes admin processing metadata into the free-text
// comment of a history entry and decodes it back.
//
// Wire format (tags in fixed order, space separated):
//
//	[ADMIN] [MODE:<mode>] [SERVICE:<kind>] [REASON:<code>] [BOOKING_AMOUNT:<n>] [ACTUAL_PRICE:<n>] <label — note — Attachment: url>
//
// Parse(Build(c)) recovers every field set in c.
package admincomment

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Separator joins the free-text segments
const Separator = " — "

const attachmentMarker = "Attachment:"

// Mode is the admin action recorded in a comment
type Mode string

// Mode constants
const (
	ModeHold         Mode = "HOLD"
	ModeUnderProcess Mode = "UNDERPROCESS"
	ModeDone         Mode = "DONE"
	ModeCancel       Mode = "CANCEL"
	ModeAssign       Mode = "ASSIGN"
)

// IsValid returns true if the mode is one of the defined constants
func (m Mode) IsValid() bool {
	switch m {
	case ModeHold, ModeUnderProcess, ModeDone, ModeCancel, ModeAssign:
		return true
	default:
		return false
	}
}

// Reason is a coded reason with its display label
type Reason struct {
	Code  string `json:"code,omitempty"`
	Label string `json:"label,omitempty"`
}

// Comment holds the structured admin metadata
type Comment struct {
	Mode          Mode     `json:"mode,omitempty"`
	Service       string   `json:"service,omitempty"`
	Reason        *Reason  `json:"reason,omitempty"`
	BookingAmount *float64 `json:"bookingAmount,omitempty"`
	ActualPrice   *float64 `json:"actualPrice,omitempty"`
	Note          string   `json:"note,omitempty"`
	AttachmentURL string   `json:"attachmentUrl,omitempty"`
}

// Parsed is the result of decoding a comment string
type Parsed struct {
	Comment
	IsAdmin bool `json:"isAdmin"`
	// set when the tag was present but not a finite number
	BookingAmountInvalid bool `json:"bookingAmountInvalid,omitempty"`
	ActualPriceInvalid   bool `json:"actualPriceInvalid,omitempty"`
}

var (
	adminTagRe = regexp.MustCompile(`(?i)\[ADMIN\]`)
	// only the known tags form the head; "[urgent]" in a note is content
	headRe = regexp.MustCompile(`(?i)^\s*(?:\[(?:ADMIN|(?:MODE|SERVICE|REASON|BOOKING_AMOUNT|ACTUAL_PRICE):[^\]]*)\]\s*)+`)
	// the attachment is the final segment, or the only one
	attachmentRe = regexp.MustCompile(`(?i)(?:^|` + Separator + `)` + attachmentMarker + ` (\S+)$`)
	urlRe        = regexp.MustCompile(`(?i)^(?:https?://\S+|\S*/uploads/\S+|\S+\.pdf(?:[?#]\S*)?)$`)

	tagRes = map[string]*regexp.Regexp{}
)

func init() {
	for _, tag := range []string{"MODE", "SERVICE", "REASON", "BOOKING_AMOUNT", "ACTUAL_PRICE"} {
		tagRes[tag] = regexp.MustCompile(`(?i)\[` + tag + `:([^\]]*)\]`)
	}
}

// Build encodes c. Empty fields are omitted. A reason with a code always
// emits a label segment (given label, else catalog label, else the code);
// a reason with only a label gets a code derived from it.
func Build(c Comment) string {
	tags := []string{"[ADMIN]"}
	if c.Mode != "" {
		tags = append(tags, "[MODE:"+strings.ToUpper(string(c.Mode))+"]")
	}
	if s := strings.TrimSpace(c.Service); s != "" {
		tags = append(tags, "[SERVICE:"+strings.ToUpper(s)+"]")
	}

	var segments []string
	if r := normalizeReason(c.Mode, c.Reason); r != nil {
		tags = append(tags, "[REASON:"+r.Code+"]")
		segments = append(segments, r.Label)
	}
	if v, ok := finite(c.BookingAmount); ok {
		tags = append(tags, "[BOOKING_AMOUNT:"+formatNumber(v)+"]")
	}
	if v, ok := finite(c.ActualPrice); ok {
		tags = append(tags, "[ACTUAL_PRICE:"+formatNumber(v)+"]")
	}

	if note := strings.TrimSpace(c.Note); note != "" {
		segments = append(segments, note)
	}
	if u := strings.TrimSpace(c.AttachmentURL); u != "" {
		segments = append(segments, attachmentMarker+" "+u)
	}

	out := strings.Join(tags, " ")
	if len(segments) > 0 {
		out += " " + strings.Join(segments, Separator)
	}
	return out
}

// Parse decodes s. Missing tags are left empty; it never fails.
func Parse(s string) Parsed {
	var p Parsed
	head := headRe.FindString(s)
	p.IsAdmin = adminTagRe.MatchString(head)

	if v, ok := tagValue(head, "MODE"); ok {
		p.Mode = Mode(strings.ToUpper(v))
	}
	if v, ok := tagValue(head, "SERVICE"); ok {
		p.Service = strings.ToUpper(v)
	}
	reasonCode, hasReason := tagValue(head, "REASON")
	if v, ok := tagValue(head, "BOOKING_AMOUNT"); ok {
		p.BookingAmount, p.BookingAmountInvalid = parseNumber(v)
	}
	if v, ok := tagValue(head, "ACTUAL_PRICE"); ok {
		p.ActualPrice, p.ActualPriceInvalid = parseNumber(v)
	}

	rest := strings.TrimRightFunc(s[len(head):], unicode.IsSpace)
	rest, p.AttachmentURL = extractAttachment(rest)

	if hasReason {
		label, note, _ := strings.Cut(rest, Separator)
		p.Reason = &Reason{Code: reasonCode, Label: strings.TrimSpace(label)}
		p.Note = note
	} else {
		p.Note = rest
	}

	return p
}

// IsAdmin reports whether s opens with the [ADMIN] marker
func IsAdmin(s string) bool {
	return adminTagRe.MatchString(headRe.FindString(s))
}

// ValidAttachmentURL reports whether u can be carried as the final
// attachment segment and read back unchanged
func ValidAttachmentURL(u string) bool {
	return urlRe.MatchString(u)
}

func tagValue(s, tag string) (string, bool) {
	m := tagRes[tag].FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// extractAttachment removes a trailing "Attachment: <url>" segment and
// returns the url. Anything else stays in the text untouched.
func extractAttachment(s string) (string, string) {
	m := attachmentRe.FindStringSubmatchIndex(s)
	if m == nil {
		return s, ""
	}
	url := s[m[2]:m[3]]
	if !ValidAttachmentURL(url) {
		return s, ""
	}
	return s[:m[0]], url
}

func normalizeReason(mode Mode, r *Reason) *Reason {
	if r == nil {
		return nil
	}
	code := strings.TrimSpace(r.Code)
	label := strings.TrimSpace(r.Label)
	if code == "" && label == "" {
		return nil
	}

	if code == "" {
		code = CodeFromLabel(label)
	}
	if label == "" {
		if l, ok := LookupReason(mode, code); ok {
			label = l
		} else {
			label = code
		}
	}
	// the label is the first segment; it must not split
	label = strings.ReplaceAll(label, Separator, " - ")
	code = strings.NewReplacer("[", "", "]", "").Replace(code)

	return &Reason{Code: code, Label: label}
}

// CodeFromLabel derives an UPPER_SNAKE code from a free-text label
func CodeFromLabel(label string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		pendingSep = true
	}
	return b.String()
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseNumber(s string) (*float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, true
	}
	return &v, false
}
