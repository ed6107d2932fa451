package derive

import (
	"strings"
	"unicode"

	"github.com/helloviza/approvals/internal/domain/entity"
)

type keyword struct {
	text string
	// whole requires a word match; "air" would otherwise hit "train" and "repair"
	whole bool
}

type kindRule struct {
	kind     entity.ServiceKind
	keywords []keyword
}

// kindTable is evaluated in order; the first matching rule wins.
var kindTable = []kindRule{
	{entity.ServiceFlight, []keyword{{text: "flight"}, {text: "air", whole: true}, {text: "airline"}, {text: "airfare"}}},
	{entity.ServiceHotel, []keyword{{text: "hotel"}, {text: "stay"}}},
	{entity.ServiceVisa, []keyword{{text: "visa"}}},
	{entity.ServiceCab, []keyword{{text: "cab"}, {text: "taxi"}, {text: "transfer"}}},
	{entity.ServiceRail, []keyword{{text: "train"}, {text: "rail"}}},
	{entity.ServiceHoliday, []keyword{{text: "holiday"}, {text: "package"}}},
	{entity.ServiceMICE, []keyword{{text: "mice"}, {text: "event"}, {text: "conference"}}},
}

// ServiceKind classifies a request by its first cart item. Later items are
// ignored, so a mixed cart is reported by whatever was added first.
func ServiceKind(req *entity.ApprovalRequest) entity.ServiceKind {
	if req == nil || len(req.CartItems) == 0 {
		return entity.ServiceOther
	}
	return ItemKind(req.CartItems[0])
}

// ItemKind classifies a single cart item from its type, service or category,
// taking the first non-empty one
func ItemKind(item entity.CartItem) entity.ServiceKind {
	return ClassifyKind(firstNonEmpty(item.Type, item.Service, item.Category))
}

// ClassifyKind maps free text onto a service kind
func ClassifyKind(text string) entity.ServiceKind {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return entity.ServiceOther
	}

	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, rule := range kindTable {
		for _, kw := range rule.keywords {
			if kw.whole {
				if containsWord(words, kw.text) {
					return rule.kind
				}
				continue
			}
			if strings.Contains(text, kw.text) {
				return rule.kind
			}
		}
	}

	return entity.ServiceOther
}

// ParseKind accepts a filter value such as "flight" or "Flight"; unknown
// values map to ServiceOther
func ParseKind(s string) (entity.ServiceKind, bool) {
	k := entity.ServiceKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case entity.ServiceFlight, entity.ServiceHotel, entity.ServiceVisa, entity.ServiceCab,
		entity.ServiceRail, entity.ServiceHoliday, entity.ServiceMICE, entity.ServiceOther:
		return k, true
	default:
		return entity.ServiceOther, false
	}
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
