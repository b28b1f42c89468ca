// Package store is the product database service: inventory, product
// images, and the draft listing approval flow, over SQLite. It backs
// the core and listing tool categories and the simple analytics
// reports. Marketplace publication itself needs API credentials and is
// reported as not yet implemented.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nyhage/bodil/internal/dispatch"
	"github.com/nyhage/bodil/internal/usage"
)

// Product statuses.
const (
	StatusDraft    = "draft"
	StatusListed   = "listed"
	StatusSold     = "sold"
	StatusArchived = "archived"
)

// Draft listing statuses.
const (
	DraftPending  = "pending"
	DraftApproved = "approved"
	DraftRejected = "rejected"
)

// Store implements dispatch.ListingService and dispatch.AnalyticsService.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// usageStore backs the usage_report tool when configured.
	usageStore *usage.Store
}

// New opens (or creates) the product database at dbPath.
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open product database: %w", err)
	}
	return NewWithDB(db, logger)
}

// NewWithDB wraps an existing connection, running migrations. Tests use
// this with an in-memory driver.
func NewWithDB(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate product schema: %w", err)
	}
	return s, nil
}

// SetUsageStore wires the usage store so usage_report can answer.
func (s *Store) SetUsageStore(us *usage.Store) {
	s.usageStore = us
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		title       TEXT NOT NULL,
		description TEXT,
		price_sek   REAL,
		cost_sek    REAL,
		status      TEXT NOT NULL DEFAULT 'draft',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_products_status ON products(status);

	CREATE TABLE IF NOT EXISTS product_images (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		path       TEXT NOT NULL,
		is_primary INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_images_product ON product_images(product_id);

	CREATE TABLE IF NOT EXISTS draft_listings (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id  INTEGER NOT NULL REFERENCES products(id),
		platform    TEXT NOT NULL,
		title       TEXT NOT NULL,
		description TEXT,
		price_sek   REAL,
		status      TEXT NOT NULL DEFAULT 'pending',
		reason      TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_drafts_status ON draft_listings(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// errResult reports a domain failure in-band, the way every tool
// surface expects it.
func errResult(format string, args ...any) dispatch.Result {
	return dispatch.Result{"error": fmt.Sprintf(format, args...)}
}

// --- core: products ---

func (s *Store) SearchProducts(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	query, _, err := strArg(args, "query")
	if err != nil {
		return nil, err
	}
	status, hasStatus, err := strArg(args, "status")
	if err != nil {
		return nil, err
	}
	maxPrice, hasMax, err := floatArg(args, "max_price")
	if err != nil {
		return nil, err
	}
	limit, hasLimit, err := intArg(args, "limit")
	if err != nil {
		return nil, err
	}
	if !hasLimit || limit <= 0 {
		limit = 20
	}

	q := `SELECT id, title, description, price_sek, status FROM products WHERE 1=1`
	var params []any
	if query != "" {
		q += ` AND (title LIKE ? OR description LIKE ?)`
		pattern := "%" + query + "%"
		params = append(params, pattern, pattern)
	}
	if hasStatus {
		q += ` AND status = ?`
		params = append(params, status)
	} else {
		q += ` AND status != ?`
		params = append(params, StatusArchived)
	}
	if hasMax {
		q += ` AND price_sek <= ?`
		params = append(params, maxPrice)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	params = append(params, limit)

	rows, err := s.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	products := []any{}
	for rows.Next() {
		var id int
		var title string
		var description sql.NullString
		var price sql.NullFloat64
		var st string
		if err := rows.Scan(&id, &title, &description, &price, &st); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, map[string]any{
			"id":          id,
			"title":       title,
			"description": description.String,
			"price_sek":   price.Float64,
			"status":      st,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dispatch.Result{"count": len(products), "products": products}, nil
}

func (s *Store) CreateProduct(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	title, err := requireStr(args, "title")
	if err != nil {
		return nil, err
	}
	description, _, err := strArg(args, "description")
	if err != nil {
		return nil, err
	}
	price, _, err := floatArg(args, "price_sek")
	if err != nil {
		return nil, err
	}

	ts := now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (title, description, price_sek, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		title, description, price, StatusDraft, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("product ID: %w", err)
	}

	s.logger.Info("product created", "product_id", id, "title", title)
	return dispatch.Result{"product_id": id, "title": title, "status": StatusDraft}, nil
}

func (s *Store) GetProduct(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	id, err := requireInt(args, "product_id")
	if err != nil {
		return nil, err
	}

	var title string
	var description sql.NullString
	var price, cost sql.NullFloat64
	var status, createdAt string
	err = s.db.QueryRowContext(ctx,
		`SELECT title, description, price_sek, cost_sek, status, created_at
		 FROM products WHERE id = ?`, id,
	).Scan(&title, &description, &price, &cost, &status, &createdAt)
	if err == sql.ErrNoRows {
		return errResult("Product %d not found", id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}

	images, err := s.imagePaths(ctx, id)
	if err != nil {
		return nil, err
	}

	return dispatch.Result{
		"product_id":  id,
		"title":       title,
		"description": description.String,
		"price_sek":   price.Float64,
		"cost_sek":    cost.Float64,
		"status":      status,
		"created_at":  createdAt,
		"images":      images,
	}, nil
}

func (s *Store) UpdateProduct(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	id, err := requireInt(args, "product_id")
	if err != nil {
		return nil, err
	}

	set := ""
	var params []any
	var updated []string
	if title, ok, err := strArg(args, "title"); err != nil {
		return nil, err
	} else if ok {
		set += ", title = ?"
		params = append(params, title)
		updated = append(updated, "title")
	}
	if description, ok, err := strArg(args, "description"); err != nil {
		return nil, err
	} else if ok {
		set += ", description = ?"
		params = append(params, description)
		updated = append(updated, "description")
	}
	if price, ok, err := floatArg(args, "price_sek"); err != nil {
		return nil, err
	} else if ok {
		if price < 0 {
			return nil, &dispatch.InvalidArgsError{Reason: "price_sek must be >= 0"}
		}
		set += ", price_sek = ?"
		params = append(params, price)
		updated = append(updated, "price_sek")
	}

	if len(updated) == 0 {
		return dispatch.Result{"product_id": id, "updated_fields": []string{}}, nil
	}

	exists, err := s.productExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return errResult("Product %d not found", id), nil
	}

	params = append([]any{now()}, params...)
	params = append(params, id)
	_, err = s.db.ExecContext(ctx,
		`UPDATE products SET updated_at = ?`+set+` WHERE id = ?`, params...)
	if err != nil {
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	return dispatch.Result{"product_id": id, "updated_fields": updated}, nil
}

func (s *Store) productExists(ctx context.Context, id int) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check product %d: %w", id, err)
	}
	return true, nil
}

func (s *Store) ArchiveProduct(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	return s.setProductStatus(ctx, args, StatusArchived, StatusArchived)
}

func (s *Store) UnarchiveProduct(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	return s.setProductStatus(ctx, args, StatusDraft, "")
}

// setProductStatus flips a product's status. rejectIf guards against
// no-op transitions ("already archived").
func (s *Store) setProductStatus(ctx context.Context, args dispatch.Args, to, rejectIf string) (dispatch.Result, error) {
	id, err := requireInt(args, "product_id")
	if err != nil {
		return nil, err
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM products WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return errResult("Product %d not found", id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	if rejectIf != "" && current == rejectIf {
		return errResult("Product %d is already %s", id, rejectIf), nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE products SET status = ?, updated_at = ? WHERE id = ?`, to, now(), id)
	if err != nil {
		return nil, fmt.Errorf("update product %d status: %w", id, err)
	}
	return dispatch.Result{"product_id": id, "status": to}, nil
}

func (s *Store) SaveProductImage(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	id, err := requireInt(args, "product_id")
	if err != nil {
		return nil, err
	}
	path, err := requireStr(args, "path")
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return errResult("File not found: %s", path), nil
	}

	exists, err := s.productExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return errResult("Product %d not found", id), nil
	}

	var existing int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM product_images WHERE product_id = ?`, id).Scan(&existing); err != nil {
		return nil, fmt.Errorf("count images: %w", err)
	}

	// The first image becomes the primary one.
	isPrimary := 0
	if existing == 0 {
		isPrimary = 1
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO product_images (product_id, path, is_primary, created_at) VALUES (?, ?, ?, ?)`,
		id, path, isPrimary, now())
	if err != nil {
		return nil, fmt.Errorf("save image: %w", err)
	}
	imageID, _ := res.LastInsertId()
	total := existing + 1

	return dispatch.Result{
		"image_id":     imageID,
		"product_id":   id,
		"path":         path,
		"total_images": total,
	}, nil
}

func (s *Store) GetProductImages(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	id, err := requireInt(args, "product_id")
	if err != nil {
		return nil, err
	}

	var title string
	row := s.db.QueryRowContext(ctx, `SELECT title FROM products WHERE id = ?`, id)
	if err := row.Scan(&title); err == sql.ErrNoRows {
		return errResult("Product %d not found", id), nil
	} else if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}

	paths, err := s.imagePaths(ctx, id)
	if err != nil {
		return nil, err
	}

	// The primary image sorts first.
	display := []any{}
	for i, p := range paths {
		if _, statErr := os.Stat(p); statErr != nil {
			continue
		}
		caption := fmt.Sprintf("Bild %d av %d — %s", i+1, len(paths), title)
		if i == 0 {
			caption = fmt.Sprintf("Huvudbild — %s", title)
		}
		display = append(display, map[string]any{
			"path":    p,
			"caption": caption,
		})
	}

	return dispatch.Result{
		"product_id":      id,
		"product_title":   title,
		"image_count":     len(paths),
		"images":          paths,
		"_display_images": display,
	}, nil
}

func (s *Store) imagePaths(ctx context.Context, productID int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM product_images WHERE product_id = ? ORDER BY is_primary DESC, id`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("list images for product %d: %w", productID, err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// --- listing: draft lifecycle ---

func (s *Store) CreateDraft(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	productID, err := requireInt(args, "product_id")
	if err != nil {
		return nil, err
	}
	platform, err := requireStr(args, "platform")
	if err != nil {
		return nil, err
	}
	title, err := requireStr(args, "title")
	if err != nil {
		return nil, err
	}
	description, _, err := strArg(args, "description")
	if err != nil {
		return nil, err
	}
	price, _, err := floatArg(args, "price_sek")
	if err != nil {
		return nil, err
	}

	var productStatus string
	row := s.db.QueryRowContext(ctx, `SELECT status FROM products WHERE id = ?`, productID)
	if err := row.Scan(&productStatus); err == sql.ErrNoRows {
		return errResult("Product %d not found", productID), nil
	} else if err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	if productStatus == StatusArchived {
		return errResult("Product %d is archived", productID), nil
	}

	ts := now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO draft_listings
			(product_id, platform, title, description, price_sek, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		productID, platform, title, description, price, DraftPending, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	draftID, _ := res.LastInsertId()

	s.logger.Info("draft listing created", "draft_id", draftID, "product_id", productID, "platform", platform)
	return dispatch.Result{
		"draft_id":   draftID,
		"product_id": productID,
		"platform":   platform,
		"status":     DraftPending,
	}, nil
}

func (s *Store) ListDrafts(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	status, hasStatus, err := strArg(args, "status")
	if err != nil {
		return nil, err
	}

	q := `SELECT id, product_id, platform, title, price_sek, status
	      FROM draft_listings`
	var params []any
	if hasStatus {
		q += ` WHERE status = ?`
		params = append(params, status)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	drafts := []any{}
	for rows.Next() {
		var id, productID int
		var platform, title, st string
		var price sql.NullFloat64
		if err := rows.Scan(&id, &productID, &platform, &title, &price, &st); err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		drafts = append(drafts, map[string]any{
			"draft_id":   id,
			"product_id": productID,
			"platform":   platform,
			"title":      title,
			"price_sek":  price.Float64,
			"status":     st,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dispatch.Result{"count": len(drafts), "drafts": drafts}, nil
}

func (s *Store) GetDraft(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	id, err := requireInt(args, "draft_id")
	if err != nil {
		return nil, err
	}

	var productID int
	var platform, title, status, createdAt string
	var description, reason sql.NullString
	var price sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT product_id, platform, title, description, price_sek, status, reason, created_at
		 FROM draft_listings WHERE id = ?`, id,
	).Scan(&productID, &platform, &title, &description, &price, &status, &reason, &createdAt)
	if err == sql.ErrNoRows {
		return errResult("Draft %d not found", id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft %d: %w", id, err)
	}

	return dispatch.Result{
		"draft_id":    id,
		"product_id":  productID,
		"platform":    platform,
		"title":       title,
		"description": description.String,
		"price_sek":   price.Float64,
		"status":      status,
		"reason":      reason.String,
		"created_at":  createdAt,
	}, nil
}

func (s *Store) UpdateDraft(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	id, err := requireInt(args, "draft_id")
	if err != nil {
		return nil, err
	}

	status, found, err := s.draftStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return errResult("Draft %d not found", id), nil
	}
	if status != DraftPending {
		return errResult("Cannot edit draft with status '%s', only pending", status), nil
	}

	set := ""
	var params []any
	var updated []string
	if title, ok, err := strArg(args, "title"); err != nil {
		return nil, err
	} else if ok {
		set += ", title = ?"
		params = append(params, title)
		updated = append(updated, "title")
	}
	if description, ok, err := strArg(args, "description"); err != nil {
		return nil, err
	} else if ok {
		set += ", description = ?"
		params = append(params, description)
		updated = append(updated, "description")
	}
	if price, ok, err := floatArg(args, "price_sek"); err != nil {
		return nil, err
	} else if ok {
		set += ", price_sek = ?"
		params = append(params, price)
		updated = append(updated, "price_sek")
	}

	if len(updated) > 0 {
		params = append([]any{now()}, params...)
		params = append(params, id)
		_, err = s.db.ExecContext(ctx,
			`UPDATE draft_listings SET updated_at = ?`+set+` WHERE id = ?`, params...)
		if err != nil {
			return nil, fmt.Errorf("update draft %d: %w", id, err)
		}
	}
	return dispatch.Result{"draft_id": id, "updated_fields": updated}, nil
}

func (s *Store) ApproveDraft(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	return s.transitionDraft(ctx, args, DraftApproved, "")
}

func (s *Store) RejectDraft(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	reason, _, err := strArg(args, "reason")
	if err != nil {
		return nil, err
	}
	return s.transitionDraft(ctx, args, DraftRejected, reason)
}

// transitionDraft moves a pending draft to a terminal review state.
func (s *Store) transitionDraft(ctx context.Context, args dispatch.Args, to, reason string) (dispatch.Result, error) {
	id, err := requireInt(args, "draft_id")
	if err != nil {
		return nil, err
	}

	status, found, err := s.draftStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return errResult("Draft %d not found", id), nil
	}
	if status != DraftPending {
		return errResult("Cannot move draft with status '%s' to %s", status, to), nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE draft_listings SET status = ?, reason = ?, updated_at = ? WHERE id = ?`,
		to, reason, now(), id)
	if err != nil {
		return nil, fmt.Errorf("transition draft %d: %w", id, err)
	}

	result := dispatch.Result{"draft_id": id, "status": to}
	if reason != "" {
		result["reason"] = reason
	}
	return result, nil
}

func (s *Store) draftStatus(ctx context.Context, id int) (string, bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM draft_listings WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get draft %d: %w", id, err)
	}
	return status, true, nil
}

// Publication needs live marketplace credentials, which this backend
// does not hold.

func (s *Store) PublishListing(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	return nil, dispatch.ErrNotImplemented
}

func (s *Store) RelistProduct(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	return nil, dispatch.ErrNotImplemented
}

func (s *Store) CancelListing(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	return nil, dispatch.ErrNotImplemented
}

// --- analytics ---

func (s *Store) BusinessSummary(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	byStatus, err := s.countByStatus(ctx)
	if err != nil {
		return nil, err
	}

	var inventoryValue sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT SUM(price_sek) FROM products WHERE status IN (?, ?)`,
		StatusDraft, StatusListed).Scan(&inventoryValue)
	if err != nil {
		return nil, fmt.Errorf("inventory value: %w", err)
	}

	var pendingDrafts int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM draft_listings WHERE status = ?`, DraftPending).Scan(&pendingDrafts)
	if err != nil {
		return nil, fmt.Errorf("pending drafts: %w", err)
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	return dispatch.Result{
		"products_total":      total,
		"products_by_status":  toAnyMap(byStatus),
		"inventory_value_sek": inventoryValue.Float64,
		"pending_drafts":      pendingDrafts,
	}, nil
}

func (s *Store) InventoryReport(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	byStatus, err := s.countByStatus(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, price_sek, status FROM products
		 WHERE status != ? ORDER BY created_at DESC LIMIT 50`, StatusArchived)
	if err != nil {
		return nil, fmt.Errorf("inventory report: %w", err)
	}
	defer rows.Close()

	items := []any{}
	for rows.Next() {
		var id int
		var title, status string
		var price sql.NullFloat64
		if err := rows.Scan(&id, &title, &price, &status); err != nil {
			return nil, err
		}
		items = append(items, map[string]any{
			"id": id, "title": title, "price_sek": price.Float64, "status": status,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return dispatch.Result{"by_status": toAnyMap(byStatus), "items": items}, nil
}

func (s *Store) ProfitabilityReport(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	year, err := requireInt(args, "year")
	if err != nil {
		return nil, err
	}
	month, hasMonth, err := intArg(args, "month")
	if err != nil {
		return nil, err
	}
	if hasMonth && (month < 1 || month > 12) {
		return nil, &dispatch.InvalidArgsError{Reason: "month must be between 1 and 12"}
	}

	// The sale period is the status flip to sold, recorded in
	// updated_at.
	q := `SELECT COUNT(*), SUM(price_sek), SUM(cost_sek) FROM products
	      WHERE status = ? AND strftime('%Y', updated_at) = ?`
	params := []any{StatusSold, fmt.Sprintf("%04d", year)}
	if hasMonth {
		q += ` AND strftime('%m', updated_at) = ?`
		params = append(params, fmt.Sprintf("%02d", month))
	}

	var soldCount int
	var revenue, cost sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, q, params...).Scan(&soldCount, &revenue, &cost); err != nil {
		return nil, fmt.Errorf("profitability report: %w", err)
	}

	result := dispatch.Result{
		"year":             year,
		"sold_count":       soldCount,
		"revenue_sek":      revenue.Float64,
		"cost_sek":         cost.Float64,
		"gross_profit_sek": revenue.Float64 - cost.Float64,
	}
	if hasMonth {
		result["month"] = month
	}
	return result, nil
}

func (s *Store) PeriodComparison(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	return nil, dispatch.ErrNotImplemented
}

func (s *Store) UsageReport(ctx context.Context, args dispatch.Args) (dispatch.Result, error) {
	if s.usageStore == nil {
		return errResult("Usage tracking not configured"), nil
	}

	days, hasDays, err := intArg(args, "days")
	if err != nil {
		return nil, err
	}
	if !hasDays || days <= 0 {
		days = 30
	}

	end := time.Now().Add(time.Hour)
	start := time.Now().AddDate(0, 0, -days)

	sum, err := s.usageStore.Summary(start, end)
	if err != nil {
		return nil, fmt.Errorf("usage summary: %w", err)
	}
	byModel, err := s.usageStore.SummaryByModel(start, end)
	if err != nil {
		return nil, fmt.Errorf("usage by model: %w", err)
	}

	models := map[string]any{}
	for model, m := range byModel {
		models[model] = map[string]any{
			"calls":         m.TotalRecords,
			"input_tokens":  m.TotalInputTokens,
			"output_tokens": m.TotalOutputTokens,
			"cost_sek":      m.TotalCostSEK,
		}
	}

	return dispatch.Result{
		"days":          days,
		"turns":         sum.TotalRecords,
		"input_tokens":  sum.TotalInputTokens,
		"output_tokens": sum.TotalOutputTokens,
		"tool_calls":    sum.TotalToolCalls,
		"cost_sek":      sum.TotalCostSEK,
		"by_model":      models,
	}, nil
}

func (s *Store) countByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM products GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func toAnyMap(in map[string]int) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
