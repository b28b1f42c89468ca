package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nyhage/bodil/internal/catalog"
)

// ErrNotImplemented is returned by service stubs for operations that
// exist in the catalog but have no backing code yet. The dispatcher
// turns it into a stable in-band message.
var ErrNotImplemented = errors.New("not implemented")

// InvalidArgsError marks argument decoding failures inside services so
// the dispatcher can phrase them consistently.
type InvalidArgsError struct {
	Reason string
}

func (e *InvalidArgsError) Error() string { return e.Reason }

type operation func(ctx context.Context, args Args) (Result, error)

type binding struct {
	service string
	// resolve returns the bound operation, or nil when the service
	// handle is not configured.
	resolve func(*Services) operation
}

// dbServices are backed by the local database; their availability
// errors name the missing engine the way operators expect to see it.
var dbServices = map[string]string{
	"listing":    "ListingService",
	"order":      "OrderService",
	"accounting": "AccountingService",
	"scout":      "ScoutService",
	"marketing":  "MarketingService",
	"analytics":  "AnalyticsService",
}

var bindings = map[string]binding{
	"search_tradera": {"tradera", func(s *Services) operation {
		if s.Tradera == nil {
			return nil
		}
		return s.Tradera.Search
	}},
	"get_tradera_item": {"tradera", func(s *Services) operation {
		if s.Tradera == nil {
			return nil
		}
		return s.Tradera.GetItem
	}},
	"get_shipping_options": {"tradera", func(s *Services) operation {
		if s.Tradera == nil {
			return nil
		}
		return s.Tradera.GetShippingOptions
	}},
	"search_blocket": {"blocket", func(s *Services) operation {
		if s.Blocket == nil {
			return nil
		}
		return s.Blocket.Search
	}},
	"get_blocket_ad": {"blocket", func(s *Services) operation {
		if s.Blocket == nil {
			return nil
		}
		return s.Blocket.GetAd
	}},
	"price_check": {"pricing", func(s *Services) operation {
		if s.Pricing == nil {
			return nil
		}
		return s.Pricing.PriceCheck
	}},
	"search_products": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.SearchProducts
	}},
	"create_product": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.CreateProduct
	}},
	"get_product": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.GetProduct
	}},
	"update_product": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.UpdateProduct
	}},
	"archive_product": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.ArchiveProduct
	}},
	"unarchive_product": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.UnarchiveProduct
	}},
	"save_product_image": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.SaveProductImage
	}},
	"get_product_images": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.GetProductImages
	}},
	"create_draft_listing": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.CreateDraft
	}},
	"list_draft_listings": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.ListDrafts
	}},
	"get_draft_listing": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.GetDraft
	}},
	"update_draft_listing": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.UpdateDraft
	}},
	"approve_draft_listing": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.ApproveDraft
	}},
	"reject_draft_listing": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.RejectDraft
	}},
	"publish_listing": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.PublishListing
	}},
	"relist_product": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.RelistProduct
	}},
	"cancel_listing": {"listing", func(s *Services) operation {
		if s.Listing == nil {
			return nil
		}
		return s.Listing.CancelListing
	}},
	"check_new_orders": {"order", func(s *Services) operation {
		if s.Order == nil {
			return nil
		}
		return s.Order.CheckNewOrders
	}},
	"list_orders": {"order", func(s *Services) operation {
		if s.Order == nil {
			return nil
		}
		return s.Order.ListOrders
	}},
	"get_order": {"order", func(s *Services) operation {
		if s.Order == nil {
			return nil
		}
		return s.Order.GetOrder
	}},
	"mark_order_shipped": {"order", func(s *Services) operation {
		if s.Order == nil {
			return nil
		}
		return s.Order.MarkShipped
	}},
	"create_shipping_label": {"order", func(s *Services) operation {
		if s.Order == nil {
			return nil
		}
		return s.Order.CreateShippingLabel
	}},
	"create_sale_voucher": {"order", func(s *Services) operation {
		if s.Order == nil {
			return nil
		}
		return s.Order.CreateSaleVoucher
	}},
	"leave_feedback": {"order", func(s *Services) operation {
		if s.Order == nil {
			return nil
		}
		return s.Order.LeaveFeedback
	}},
	"create_voucher": {"accounting", func(s *Services) operation {
		if s.Accounting == nil {
			return nil
		}
		return s.Accounting.CreateVoucher
	}},
	"list_vouchers": {"accounting", func(s *Services) operation {
		if s.Accounting == nil {
			return nil
		}
		return s.Accounting.ListVouchers
	}},
	"export_vouchers": {"accounting", func(s *Services) operation {
		if s.Accounting == nil {
			return nil
		}
		return s.Accounting.ExportVouchers
	}},
	"create_saved_search": {"scout", func(s *Services) operation {
		if s.Scout == nil {
			return nil
		}
		return s.Scout.CreateSearch
	}},
	"list_saved_searches": {"scout", func(s *Services) operation {
		if s.Scout == nil {
			return nil
		}
		return s.Scout.ListSearches
	}},
	"update_saved_search": {"scout", func(s *Services) operation {
		if s.Scout == nil {
			return nil
		}
		return s.Scout.UpdateSearch
	}},
	"delete_saved_search": {"scout", func(s *Services) operation {
		if s.Scout == nil {
			return nil
		}
		return s.Scout.DeleteSearch
	}},
	"run_saved_search": {"scout", func(s *Services) operation {
		if s.Scout == nil {
			return nil
		}
		return s.Scout.RunSearch
	}},
	"refresh_listing_stats": {"marketing", func(s *Services) operation {
		if s.Marketing == nil {
			return nil
		}
		return s.Marketing.RefreshListingStats
	}},
	"analyze_listing": {"marketing", func(s *Services) operation {
		if s.Marketing == nil {
			return nil
		}
		return s.Marketing.AnalyzeListing
	}},
	"get_performance_report": {"marketing", func(s *Services) operation {
		if s.Marketing == nil {
			return nil
		}
		return s.Marketing.PerformanceReport
	}},
	"listing_dashboard": {"marketing", func(s *Services) operation {
		if s.Marketing == nil {
			return nil
		}
		return s.Marketing.Dashboard
	}},
	"business_summary": {"analytics", func(s *Services) operation {
		if s.Analytics == nil {
			return nil
		}
		return s.Analytics.BusinessSummary
	}},
	"profitability_report": {"analytics", func(s *Services) operation {
		if s.Analytics == nil {
			return nil
		}
		return s.Analytics.ProfitabilityReport
	}},
	"inventory_report": {"analytics", func(s *Services) operation {
		if s.Analytics == nil {
			return nil
		}
		return s.Analytics.InventoryReport
	}},
	"period_comparison": {"analytics", func(s *Services) operation {
		if s.Analytics == nil {
			return nil
		}
		return s.Analytics.PeriodComparison
	}},
	"usage_report": {"analytics", func(s *Services) operation {
		if s.Analytics == nil {
			return nil
		}
		return s.Analytics.UsageReport
	}},
}

// Dispatcher executes tool calls against the configured services.
type Dispatcher struct {
	services *Services
	logger   *slog.Logger
}

// New creates a dispatcher.
func New(services *Services, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{services: services, logger: logger}
}

// errorResult builds the in-band failure shape.
func errorResult(format string, args ...any) Result {
	return Result{"error": fmt.Sprintf(format, args...)}
}

// Execute runs one tool call. It never returns a Go error: unknown
// tools, unconfigured services, bad arguments, and backend failures all
// come back as {"error": ...} results for the model to read.
func (d *Dispatcher) Execute(ctx context.Context, name string, args Args) Result {
	if name == catalog.RequestToolsName {
		// Answered inline by the agent loop, never routed here.
		return errorResult("request_tools is handled inline")
	}

	b, ok := bindings[name]
	if !ok {
		d.logger.Warn("unknown tool requested", "tool", name)
		return errorResult("Unknown tool: %s", name)
	}

	op := b.resolve(d.services)
	if op == nil {
		if display, isDB := dbServices[b.service]; isDB {
			return errorResult("%s not available (no database engine)", display)
		}
		return errorResult("Service '%s' not available", b.service)
	}

	cleaned, _ := StripNulls(args).(Args)

	result, err := safeInvoke(ctx, op, cleaned)
	if err != nil {
		d.logger.Warn("tool failed", "tool", name, "error", err)
		var invalid *InvalidArgsError
		switch {
		case errors.Is(err, ErrNotImplemented):
			return errorResult("Tool '%s' is not yet implemented", name)
		case errors.As(err, &invalid):
			return errorResult("Invalid arguments for '%s': %s", name, invalid.Reason)
		default:
			return errorResult("%s", err.Error())
		}
	}
	if result == nil {
		result = Result{}
	}
	return result
}

// safeInvoke shields the loop from panicking service code.
func safeInvoke(ctx context.Context, op operation, args Args) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return op(ctx, args)
}

// Known reports whether a tool name has a binding. request_tools is not
// a binding; the loop owns it.
func Known(name string) bool {
	_, ok := bindings[name]
	return ok
}
