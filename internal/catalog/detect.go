package catalog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/nyhage/bodil/internal/llm"
)

// scanWindow is how many trailing messages the keyword scan covers.
const scanWindow = 5

// CategorySet is the set of active category tags. It only ever grows
// within a conversation session.
type CategorySet map[string]bool

// NewCategorySet builds a set from tags, dropping unknown ones. Core is
// always included.
func NewCategorySet(tags ...string) CategorySet {
	s := CategorySet{CategoryCore: true}
	for _, t := range tags {
		if KnownCategory(t) {
			s[t] = true
		}
	}
	return s
}

// Clone returns an independent copy.
func (s CategorySet) Clone() CategorySet {
	out := make(CategorySet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Sorted returns the active tags in sorted order.
func (s CategorySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k, v := range s {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Marker strings embedded in compaction summaries. The detector parses
// the category tag back out so activated categories survive compaction.
const (
	SummaryPrefix     = "[Sammanfattning av tidigare konversation]"
	categoryTagPrefix = "[Aktiva kategorier: "
)

var categoryTagRE = regexp.MustCompile(`\[Aktiva kategorier: ([^\]]*)\]`)

// CategoryTag renders the marker line for a set. Core is omitted since
// it is always active and never needs restoring.
func CategoryTag(s CategorySet) string {
	tags := make([]string, 0, len(s))
	for _, t := range s.Sorted() {
		if t != CategoryCore {
			tags = append(tags, t)
		}
	}
	return categoryTagPrefix + strings.Join(tags, ", ") + "]"
}

// keywordCategories maps Swedish conversation keywords to categories.
// Matching is case-insensitive substring search, so "order" also hits
// "ordrar" and "bokför" hits "bokföring".
var keywordCategories = []struct {
	keyword  string
	category string
}{
	{"tradera", CategoryResearch},
	{"blocket", CategoryResearch},
	{"prisko", CategoryResearch},
	{"marknadspris", CategoryResearch},
	{"annons", CategoryListing},
	{"utkast", CategoryListing},
	{"publicera", CategoryListing},
	{"order", CategoryOrder},
	{"frakt", CategoryOrder},
	{"leverans", CategoryOrder},
	{"postnord", CategoryOrder},
	{"bokför", CategoryAccounting},
	{"verifikat", CategoryAccounting},
	{"kvitto", CategoryAccounting},
	{"moms", CategoryAccounting},
	{"bevak", CategoryScout},
	{"sparade sök", CategoryScout},
	{"rapport", CategoryAnalytics},
	{"statistik", CategoryAnalytics},
	{"lönsamhet", CategoryAnalytics},
	{"kampanj", CategoryMarketing},
	{"marknadsför", CategoryMarketing},
}

// Detect expands the active set from conversation signals. It scans the
// last few messages for keywords and tool names, and every message for
// the compaction category tag. Pure: the input set is not mutated.
func Detect(messages []llm.Message, active CategorySet) CategorySet {
	return detect(messages, active, scanWindow)
}

// DetectAll is Detect with the keyword window covering the entire
// message list. The compactor uses it so a summary's category tag
// reflects the whole original history.
func DetectAll(messages []llm.Message, active CategorySet) CategorySet {
	return detect(messages, active, len(messages))
}

func detect(messages []llm.Message, active CategorySet, window int) CategorySet {
	result := CategorySet{CategoryCore: true}
	for tag := range active {
		if KnownCategory(tag) {
			result[tag] = true
		}
	}

	// Category tags from prior summaries are honored wherever they sit.
	for _, msg := range messages {
		for _, tag := range parseCategoryTag(msg.TextContent()) {
			result[tag] = true
		}
	}

	start := len(messages) - window
	if start < 0 {
		start = 0
	}
	for _, msg := range messages[start:] {
		scanMessage(msg, result)
	}

	return result
}

func scanMessage(msg llm.Message, result CategorySet) {
	for _, blk := range msg.Content {
		switch blk.Type {
		case llm.BlockText:
			scanText(blk.Text, result)
		case llm.BlockToolResult:
			scanText(blk.Content, result)
		case llm.BlockToolUse:
			// A tool used earlier keeps its category active.
			if cat, ok := CategoryOf(blk.Name); ok {
				result[cat] = true
			}
		}
	}
}

func scanText(text string, result CategorySet) {
	if text == "" {
		return
	}
	lower := strings.ToLower(text)
	for _, kc := range keywordCategories {
		if strings.Contains(lower, kc.keyword) {
			result[kc.category] = true
		}
	}
}

// parseCategoryTag extracts known category names from a summary tag
// line. Unknown names are silently dropped; malformed text yields nil.
func parseCategoryTag(text string) []string {
	m := categoryTagRE.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(m[1], ",") {
		tag := strings.TrimSpace(part)
		if KnownCategory(tag) {
			tags = append(tags, tag)
		}
	}
	return tags
}
