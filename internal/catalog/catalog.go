// Package catalog owns the tool schemas exposed to the model, their
// category grouping, and the conversation-driven category detection
// that decides which slice of the catalog a given turn sees.
package catalog

import "sort"

// Category tags. Core is always active; the rest are switched on by
// conversation signals or by the model via request_tools.
const (
	CategoryCore       = "core"
	CategoryResearch   = "research"
	CategoryListing    = "listing"
	CategoryOrder      = "order"
	CategoryAccounting = "accounting"
	CategoryScout      = "scout"
	CategoryMarketing  = "marketing"
	CategoryAnalytics  = "analytics"
)

// RequestToolsName is the meta-tool the model calls to activate more
// categories. It is always exposed and never routed to a backend.
const RequestToolsName = "request_tools"

// Schema is one tool definition plus its owning category. The category
// is internal bookkeeping and is stripped before anything goes on the
// wire.
type Schema struct {
	Name        string
	Description string
	Category    string
	Input       map[string]any
}

// knownCategories is the closed set of valid category tags.
var knownCategories = map[string]bool{
	CategoryCore:       true,
	CategoryResearch:   true,
	CategoryListing:    true,
	CategoryOrder:      true,
	CategoryAccounting: true,
	CategoryScout:      true,
	CategoryMarketing:  true,
	CategoryAnalytics:  true,
}

// KnownCategory reports whether tag is a valid category.
func KnownCategory(tag string) bool {
	return knownCategories[tag]
}

// Categories returns all known category tags, sorted.
func Categories() []string {
	out := make([]string, 0, len(knownCategories))
	for c := range knownCategories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// All returns the full catalog in its stable declaration order.
func All() []Schema {
	return tools
}

// ByName returns the schema for a tool name.
func ByName(name string) (Schema, bool) {
	s, ok := byName[name]
	return s, ok
}

// CategoryOf returns the owning category for a tool name.
func CategoryOf(name string) (string, bool) {
	s, ok := byName[name]
	if !ok {
		return "", false
	}
	return s.Category, true
}

var byName = func() map[string]Schema {
	m := make(map[string]Schema, len(tools))
	for _, t := range tools {
		m[t.Name] = t
	}
	return m
}()

// obj is shorthand for a JSON schema object definition.
func obj(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func num(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func integer(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

// tools is the catalog. Order is stable and is the order tools appear
// on the wire.
var tools = []Schema{
	// --- core: product database ---
	{
		Name:        "search_products",
		Description: "Search the product database by free text, status, or price range.",
		Category:    CategoryCore,
		Input: obj(map[string]any{
			"query":     str("Free text matched against title and description"),
			"status":    str("Filter by status: draft, listed, sold, archived"),
			"max_price": num("Upper price bound in SEK"),
			"limit":     integer("Max rows to return (default 20)"),
		}),
	},
	{
		Name:        "create_product",
		Description: "Register a new product in the database.",
		Category:    CategoryCore,
		Input: obj(map[string]any{
			"title":       str("Short product title"),
			"description": str("Condition, measurements, defects"),
			"price_sek":   num("Asking price in SEK"),
		}, "title"),
	},
	{
		Name:        "get_product",
		Description: "Fetch one product by ID, including its images and listing state.",
		Category:    CategoryCore,
		Input:       obj(map[string]any{"product_id": integer("Product ID")}, "product_id"),
	},
	{
		Name:        "update_product",
		Description: "Update title, description, or price of a product.",
		Category:    CategoryCore,
		Input: obj(map[string]any{
			"product_id":  integer("Product ID"),
			"title":       str("New title (omit to keep)"),
			"description": str("New description (omit to keep)"),
			"price_sek":   num("New price in SEK (omit to keep)"),
		}, "product_id"),
	},
	{
		Name:        "archive_product",
		Description: "Archive a product so it no longer shows in active inventory.",
		Category:    CategoryCore,
		Input:       obj(map[string]any{"product_id": integer("Product ID")}, "product_id"),
	},
	{
		Name:        "unarchive_product",
		Description: "Restore an archived product to active inventory.",
		Category:    CategoryCore,
		Input:       obj(map[string]any{"product_id": integer("Product ID")}, "product_id"),
	},
	{
		Name:        "save_product_image",
		Description: "Attach an image file to a product.",
		Category:    CategoryCore,
		Input: obj(map[string]any{
			"product_id": integer("Product ID"),
			"path":       str("Filesystem path of the image"),
		}, "product_id", "path"),
	},
	{
		Name:        "get_product_images",
		Description: "List image paths attached to a product.",
		Category:    CategoryCore,
		Input:       obj(map[string]any{"product_id": integer("Product ID")}, "product_id"),
	},

	// --- research: marketplace search and pricing ---
	{
		Name:        "search_tradera",
		Description: "Search Tradera auctions and fixed-price listings.",
		Category:    CategoryResearch,
		Input: obj(map[string]any{
			"query":       str("Search terms"),
			"category_id": integer("Tradera category ID (omit for all)"),
			"max_price":   num("Upper price bound in SEK"),
		}, "query"),
	},
	{
		Name:        "get_tradera_item",
		Description: "Fetch full detail for one Tradera item.",
		Category:    CategoryResearch,
		Input:       obj(map[string]any{"item_id": integer("Tradera item ID")}, "item_id"),
	},
	{
		Name:        "search_blocket",
		Description: "Search Blocket classifieds.",
		Category:    CategoryResearch,
		Input: obj(map[string]any{
			"query":  str("Search terms"),
			"region": str("Region name (omit for all of Sweden)"),
		}, "query"),
	},
	{
		Name:        "get_blocket_ad",
		Description: "Fetch full detail for one Blocket ad.",
		Category:    CategoryResearch,
		Input:       obj(map[string]any{"ad_id": str("Blocket ad ID")}, "ad_id"),
	},
	{
		Name:        "price_check",
		Description: "Estimate market price for an item from comparable Tradera and Blocket listings.",
		Category:    CategoryResearch,
		Input: obj(map[string]any{
			"query":      str("What to price, e.g. 'ekbord 60-tal'"),
			"product_id": integer("Product ID to attach the estimate to (optional)"),
		}, "query"),
	},
	{
		Name:        "get_shipping_options",
		Description: "List available shipping options and prices for a parcel weight.",
		Category:    CategoryResearch,
		Input:       obj(map[string]any{"weight_grams": integer("Parcel weight in grams")}, "weight_grams"),
	},

	// --- listing: draft lifecycle and publication ---
	{
		Name:        "create_draft_listing",
		Description: "Create a draft marketplace listing for a product. Drafts require approval before publishing.",
		Category:    CategoryListing,
		Input: obj(map[string]any{
			"product_id":  integer("Product ID"),
			"platform":    str("tradera or blocket"),
			"title":       str("Listing headline"),
			"description": str("Listing body text"),
			"price_sek":   num("Listing price in SEK"),
		}, "product_id", "platform", "title"),
	},
	{
		Name:        "list_draft_listings",
		Description: "List draft listings, optionally filtered by status.",
		Category:    CategoryListing,
		Input:       obj(map[string]any{"status": str("pending, approved, or rejected (omit for all)")}),
	},
	{
		Name:        "get_draft_listing",
		Description: "Fetch one draft listing by ID.",
		Category:    CategoryListing,
		Input:       obj(map[string]any{"draft_id": integer("Draft ID")}, "draft_id"),
	},
	{
		Name:        "update_draft_listing",
		Description: "Update fields on a pending draft listing.",
		Category:    CategoryListing,
		Input: obj(map[string]any{
			"draft_id":    integer("Draft ID"),
			"title":       str("New headline (omit to keep)"),
			"description": str("New body text (omit to keep)"),
			"price_sek":   num("New price (omit to keep)"),
		}, "draft_id"),
	},
	{
		Name:        "approve_draft_listing",
		Description: "Approve a draft listing for publication.",
		Category:    CategoryListing,
		Input:       obj(map[string]any{"draft_id": integer("Draft ID")}, "draft_id"),
	},
	{
		Name:        "reject_draft_listing",
		Description: "Reject a draft listing with a reason.",
		Category:    CategoryListing,
		Input: obj(map[string]any{
			"draft_id": integer("Draft ID"),
			"reason":   str("Why the draft was rejected"),
		}, "draft_id"),
	},
	{
		Name:        "publish_listing",
		Description: "Publish an approved draft to its marketplace.",
		Category:    CategoryListing,
		Input:       obj(map[string]any{"draft_id": integer("Draft ID")}, "draft_id"),
	},
	{
		Name:        "relist_product",
		Description: "Create and publish a new listing for a product whose previous listing ended unsold.",
		Category:    CategoryListing,
		Input:       obj(map[string]any{"product_id": integer("Product ID")}, "product_id"),
	},
	{
		Name:        "cancel_listing",
		Description: "Cancel an active marketplace listing.",
		Category:    CategoryListing,
		Input:       obj(map[string]any{"listing_id": integer("Listing ID")}, "listing_id"),
	},

	// --- order: sales, shipping, feedback ---
	{
		Name:        "check_new_orders",
		Description: "Poll the marketplaces for new orders since the last check.",
		Category:    CategoryOrder,
		Input:       obj(map[string]any{}),
	},
	{
		Name:        "list_orders",
		Description: "List orders, optionally filtered by status.",
		Category:    CategoryOrder,
		Input:       obj(map[string]any{"status": str("new, shipped, or completed (omit for all)")}),
	},
	{
		Name:        "get_order",
		Description: "Fetch one order by ID.",
		Category:    CategoryOrder,
		Input:       obj(map[string]any{"order_id": integer("Order ID")}, "order_id"),
	},
	{
		Name:        "mark_order_shipped",
		Description: "Mark an order as shipped and notify the buyer.",
		Category:    CategoryOrder,
		Input: obj(map[string]any{
			"order_id":    integer("Order ID"),
			"tracking_id": str("Carrier tracking number (optional)"),
		}, "order_id"),
	},
	{
		Name:        "create_shipping_label",
		Description: "Buy and download a shipping label for an order.",
		Category:    CategoryOrder,
		Input:       obj(map[string]any{"order_id": integer("Order ID")}, "order_id"),
	},
	{
		Name:        "create_sale_voucher",
		Description: "Create the accounting voucher for a completed sale.",
		Category:    CategoryOrder,
		Input:       obj(map[string]any{"order_id": integer("Order ID")}, "order_id"),
	},
	{
		Name:        "leave_feedback",
		Description: "Leave feedback for the buyer of a completed order.",
		Category:    CategoryOrder,
		Input: obj(map[string]any{
			"order_id": integer("Order ID"),
			"text":     str("Feedback text"),
		}, "order_id"),
	},

	// --- accounting: vouchers ---
	{
		Name:        "create_voucher",
		Description: "Create a manual accounting voucher.",
		Category:    CategoryAccounting,
		Input: obj(map[string]any{
			"description": str("What the voucher covers"),
			"amount_sek":  num("Amount in SEK"),
			"account":     integer("BAS account number"),
		}, "description", "amount_sek"),
	},
	{
		Name:        "list_vouchers",
		Description: "List accounting vouchers for a period.",
		Category:    CategoryAccounting,
		Input: obj(map[string]any{
			"year":  integer("Fiscal year"),
			"month": integer("Month 1-12 (omit for the whole year)"),
		}, "year"),
	},
	{
		Name:        "export_vouchers",
		Description: "Export vouchers for a period as a PDF report.",
		Category:    CategoryAccounting,
		Input: obj(map[string]any{
			"year":  integer("Fiscal year"),
			"month": integer("Month 1-12 (omit for the whole year)"),
		}, "year"),
	},

	// --- scout: saved searches ---
	{
		Name:        "create_saved_search",
		Description: "Create a saved marketplace search that runs on a schedule.",
		Category:    CategoryScout,
		Input: obj(map[string]any{
			"query":     str("Search terms"),
			"platform":  str("tradera, blocket, or both"),
			"max_price": num("Only alert below this price in SEK"),
		}, "query", "platform"),
	},
	{
		Name:        "list_saved_searches",
		Description: "List saved searches.",
		Category:    CategoryScout,
		Input:       obj(map[string]any{}),
	},
	{
		Name:        "update_saved_search",
		Description: "Update a saved search's query, platform, or price cap.",
		Category:    CategoryScout,
		Input: obj(map[string]any{
			"search_id": integer("Saved search ID"),
			"query":     str("New search terms (omit to keep)"),
			"max_price": num("New price cap (omit to keep)"),
		}, "search_id"),
	},
	{
		Name:        "delete_saved_search",
		Description: "Delete a saved search.",
		Category:    CategoryScout,
		Input:       obj(map[string]any{"search_id": integer("Saved search ID")}, "search_id"),
	},
	{
		Name:        "run_saved_search",
		Description: "Run one saved search now and return fresh hits.",
		Category:    CategoryScout,
		Input:       obj(map[string]any{"search_id": integer("Saved search ID")}, "search_id"),
	},

	// --- marketing: listing performance ---
	{
		Name:        "refresh_listing_stats",
		Description: "Refresh view and bid statistics for active listings.",
		Category:    CategoryMarketing,
		Input:       obj(map[string]any{}),
	},
	{
		Name:        "analyze_listing",
		Description: "Analyze one listing's performance and suggest improvements.",
		Category:    CategoryMarketing,
		Input:       obj(map[string]any{"listing_id": integer("Listing ID")}, "listing_id"),
	},
	{
		Name:        "get_performance_report",
		Description: "Summarize listing performance across the active inventory.",
		Category:    CategoryMarketing,
		Input:       obj(map[string]any{"days": integer("Lookback window in days (default 30)")}),
	},
	{
		Name:        "listing_dashboard",
		Description: "Compact dashboard of active listings with views, bids, and time left.",
		Category:    CategoryMarketing,
		Input:       obj(map[string]any{}),
	},

	// --- analytics: business reporting ---
	{
		Name:        "business_summary",
		Description: "Overall business summary: revenue, costs, inventory value, open orders.",
		Category:    CategoryAnalytics,
		Input:       obj(map[string]any{"days": integer("Lookback window in days (default 30)")}),
	},
	{
		Name:        "profitability_report",
		Description: "Profit per sold product for a period.",
		Category:    CategoryAnalytics,
		Input: obj(map[string]any{
			"year":  integer("Fiscal year"),
			"month": integer("Month 1-12 (omit for the whole year)"),
		}, "year"),
	},
	{
		Name:        "inventory_report",
		Description: "Inventory breakdown by status and age.",
		Category:    CategoryAnalytics,
		Input:       obj(map[string]any{}),
	},
	{
		Name:        "period_comparison",
		Description: "Compare sales between two periods.",
		Category:    CategoryAnalytics,
		Input: obj(map[string]any{
			"period_a": str("First period, YYYY-MM"),
			"period_b": str("Second period, YYYY-MM"),
		}, "period_a", "period_b"),
	},
	{
		Name:        "usage_report",
		Description: "Report assistant API usage and cost in SEK for a period.",
		Category:    CategoryAnalytics,
		Input:       obj(map[string]any{"days": integer("Lookback window in days (default 30)")}),
	},
}
