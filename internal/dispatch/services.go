// Package dispatch routes model tool calls to backend services through
// a static binding table. Failures never escape as Go errors: every
// outcome is a result map, with failures encoded under an "error" key,
// so the model always receives something it can react to.
package dispatch

import "context"

// Args are the decoded tool call arguments.
type Args = map[string]any

// Result is a tool outcome handed back to the model after JSON
// serialization.
type Result = map[string]any

// TraderaService talks to the Tradera marketplace API.
type TraderaService interface {
	Search(ctx context.Context, args Args) (Result, error)
	GetItem(ctx context.Context, args Args) (Result, error)
	GetShippingOptions(ctx context.Context, args Args) (Result, error)
}

// BlocketService talks to the Blocket classifieds API.
type BlocketService interface {
	Search(ctx context.Context, args Args) (Result, error)
	GetAd(ctx context.Context, args Args) (Result, error)
}

// PricingService estimates market prices from comparable listings.
type PricingService interface {
	PriceCheck(ctx context.Context, args Args) (Result, error)
}

// ListingService owns the product database and the draft listing
// lifecycle.
type ListingService interface {
	SearchProducts(ctx context.Context, args Args) (Result, error)
	CreateProduct(ctx context.Context, args Args) (Result, error)
	GetProduct(ctx context.Context, args Args) (Result, error)
	UpdateProduct(ctx context.Context, args Args) (Result, error)
	ArchiveProduct(ctx context.Context, args Args) (Result, error)
	UnarchiveProduct(ctx context.Context, args Args) (Result, error)
	SaveProductImage(ctx context.Context, args Args) (Result, error)
	GetProductImages(ctx context.Context, args Args) (Result, error)
	CreateDraft(ctx context.Context, args Args) (Result, error)
	ListDrafts(ctx context.Context, args Args) (Result, error)
	GetDraft(ctx context.Context, args Args) (Result, error)
	UpdateDraft(ctx context.Context, args Args) (Result, error)
	ApproveDraft(ctx context.Context, args Args) (Result, error)
	RejectDraft(ctx context.Context, args Args) (Result, error)
	PublishListing(ctx context.Context, args Args) (Result, error)
	RelistProduct(ctx context.Context, args Args) (Result, error)
	CancelListing(ctx context.Context, args Args) (Result, error)
}

// OrderService handles sales, shipping, and buyer feedback.
type OrderService interface {
	CheckNewOrders(ctx context.Context, args Args) (Result, error)
	ListOrders(ctx context.Context, args Args) (Result, error)
	GetOrder(ctx context.Context, args Args) (Result, error)
	MarkShipped(ctx context.Context, args Args) (Result, error)
	CreateShippingLabel(ctx context.Context, args Args) (Result, error)
	CreateSaleVoucher(ctx context.Context, args Args) (Result, error)
	LeaveFeedback(ctx context.Context, args Args) (Result, error)
}

// AccountingService manages vouchers.
type AccountingService interface {
	CreateVoucher(ctx context.Context, args Args) (Result, error)
	ListVouchers(ctx context.Context, args Args) (Result, error)
	ExportVouchers(ctx context.Context, args Args) (Result, error)
}

// ScoutService manages saved marketplace searches.
type ScoutService interface {
	CreateSearch(ctx context.Context, args Args) (Result, error)
	ListSearches(ctx context.Context, args Args) (Result, error)
	UpdateSearch(ctx context.Context, args Args) (Result, error)
	DeleteSearch(ctx context.Context, args Args) (Result, error)
	RunSearch(ctx context.Context, args Args) (Result, error)
}

// MarketingService evaluates listing performance.
type MarketingService interface {
	RefreshListingStats(ctx context.Context, args Args) (Result, error)
	AnalyzeListing(ctx context.Context, args Args) (Result, error)
	PerformanceReport(ctx context.Context, args Args) (Result, error)
	Dashboard(ctx context.Context, args Args) (Result, error)
}

// AnalyticsService produces business reports.
type AnalyticsService interface {
	BusinessSummary(ctx context.Context, args Args) (Result, error)
	ProfitabilityReport(ctx context.Context, args Args) (Result, error)
	InventoryReport(ctx context.Context, args Args) (Result, error)
	PeriodComparison(ctx context.Context, args Args) (Result, error)
	UsageReport(ctx context.Context, args Args) (Result, error)
}

// Services holds one handle per backend. A nil field means the backend
// is not configured for this deployment; its tools answer with an
// availability error instead of failing the loop.
type Services struct {
	Tradera    TraderaService
	Blocket    BlocketService
	Pricing    PricingService
	Listing    ListingService
	Order      OrderService
	Accounting AccountingService
	Scout      ScoutService
	Marketing  MarketingService
	Analytics  AnalyticsService
}
