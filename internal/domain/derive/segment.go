package derive

import (
	"strings"

	"github.com/helloviza/approvals/internal/domain/entity"
)

// DefaultSegment is used when nothing better describes the request
const DefaultSegment = "Travel request"

// Segment builds the human trip label from the first cart item
func Segment(req *entity.ApprovalRequest) string {
	if req == nil || len(req.CartItems) == 0 {
		return DefaultSegment
	}
	item := req.CartItems[0]

	origin := firstNonEmpty(MetaString(item.Meta, "origin"), MetaString(item.Meta, "from"))
	destination := firstNonEmpty(MetaString(item.Meta, "destination"), MetaString(item.Meta, "to"))
	if origin != "" || destination != "" {
		return joinArrow(origin, destination)
	}

	nationality := MetaString(item.Meta, "nationality")
	country := MetaString(item.Meta, "country")
	if nationality != "" || country != "" {
		return joinArrow(nationality, country)
	}

	if label := firstNonEmpty(item.Title, item.Type); label != "" {
		return label
	}

	return DefaultSegment
}

func joinArrow(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return strings.Join([]string{a, b}, " → ")
	}
}
