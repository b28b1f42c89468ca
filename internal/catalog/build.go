package catalog

import "github.com/nyhage/bodil/internal/llm"

// requestToolsSchema is the always-present meta-tool. Calling it does
// not reach any backend; the agent loop answers it inline and widens
// the tool set for the next model call.
var requestToolsSchema = Schema{
	Name: RequestToolsName,
	Description: "Activate additional tool categories for this conversation. " +
		"Available categories: research (marketplace search, price checks), " +
		"listing (draft listings, publishing), order (orders, shipping, feedback), " +
		"accounting (vouchers, exports), scout (saved searches), " +
		"marketing (listing performance), analytics (business reports).",
	Input: obj(map[string]any{
		"categories": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Category names to activate",
		},
		"reason": str("Why these tools are needed"),
	}, "categories"),
}

// BuildTools returns the wire tool list for an active set: catalog
// order preserved, tools outside the set excluded, request_tools always
// appended last, and the cache breakpoint set on the final entry. The
// category tag never leaves this package.
func BuildTools(active CategorySet) []llm.Tool {
	var out []llm.Tool
	for _, schema := range tools {
		if active[schema.Category] {
			out = append(out, llm.Tool{
				Name:        schema.Name,
				Description: schema.Description,
				InputSchema: schema.Input,
			})
		}
	}
	out = append(out, llm.Tool{
		Name:        requestToolsSchema.Name,
		Description: requestToolsSchema.Description,
		InputSchema: requestToolsSchema.Input,
	})
	out[len(out)-1].CacheControl = true
	return out
}

// ToolNames returns the names BuildTools would expose for a set.
func ToolNames(active CategorySet) []string {
	wire := BuildTools(active)
	names := make([]string, len(wire))
	for i, t := range wire {
		names[i] = t.Name
	}
	return names
}
