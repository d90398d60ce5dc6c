package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modaluna/storefront/internal/domain/checkout"
)

const (
	insertInvoiceSQL = `INSERT INTO invoices (id, user_id, shipping_address, status, total)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	insertInvoiceItemSQL = `INSERT INTO invoice_items
		(id, invoice_id, product_id, product_name, variant, quantity, unit_price, subtotal)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)`

	insertShipmentSQL = `INSERT INTO shipments (id, product_name, variant, address, user_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)`

	getInvoiceSQL = `SELECT id, user_id, shipping_address, status, total, created_at
		FROM invoices WHERE id = $1`

	getInvoiceItemsSQL = `SELECT id, invoice_id, COALESCE(product_id, ''), product_name,
			variant, quantity, unit_price, subtotal, created_at
		FROM invoice_items WHERE invoice_id = $1 ORDER BY product_name, variant`

	listInvoicesSQL = `SELECT id, user_id, shipping_address, status, total, created_at
		FROM invoices ORDER BY created_at DESC`

	listShipmentsSQL = `SELECT id, product_name, variant, address, user_id, status, created_at
		FROM shipments ORDER BY created_at DESC`
)

var _ checkout.Repository = (*CheckoutRepository)(nil)

// CheckoutRepository implements checkout.Repository backed by PostgreSQL.
//
// With atomic set, CreateInvoice writes the invoice, its items and shipments
// in one transaction: a failure anywhere rolls everything back. With atomic
// unset it reproduces the legacy two-phase behavior — the invoice commits on
// its own before the child batch, so a child failure leaves an invoice with
// no items behind for operators to reconcile.
type CheckoutRepository struct {
	pool   *pgxpool.Pool
	atomic bool
}

// NewCheckoutRepository returns a CheckoutRepository that uses the given
// pool.
func NewCheckoutRepository(pool *pgxpool.Pool, atomic bool) *CheckoutRepository {
	return &CheckoutRepository{pool: pool, atomic: atomic}
}

// CreateInvoice persists an invoice with its items and shipments.
func (r *CheckoutRepository) CreateInvoice(ctx context.Context, inv *checkout.Invoice, items []checkout.InvoiceItem, shipments []checkout.Shipment) error {
	if r.atomic {
		return r.createAtomic(ctx, inv, items, shipments)
	}
	return r.createTwoPhase(ctx, inv, items, shipments)
}

func (r *CheckoutRepository) createAtomic(ctx context.Context, inv *checkout.Invoice, items []checkout.InvoiceItem, shipments []checkout.Shipment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := insertInvoice(ctx, tx, inv); err != nil {
		return err
	}
	if err := insertChildren(ctx, tx, items, shipments); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit checkout")
	}
	return nil
}

func (r *CheckoutRepository) createTwoPhase(ctx context.Context, inv *checkout.Invoice, items []checkout.InvoiceItem, shipments []checkout.Shipment) error {
	if err := insertInvoice(ctx, r.pool, inv); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin item transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertChildren(ctx, tx, items, shipments); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit invoice items")
	}
	return nil
}

// querier covers the subset of pgx shared by pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func insertInvoice(ctx context.Context, q querier, inv *checkout.Invoice) error {
	err := q.QueryRow(ctx, insertInvoiceSQL,
		inv.ID, inv.UserID, inv.ShippingAddress, string(inv.Status), inv.Total,
	).Scan(&inv.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "insert invoice %q", inv.ID)
	}
	return nil
}

// insertChildren queues all item and shipment rows into one batch so they go
// to the server together.
func insertChildren(ctx context.Context, q querier, items []checkout.InvoiceItem, shipments []checkout.Shipment) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(insertInvoiceItemSQL,
			it.ID, it.InvoiceID, it.ProductID, it.ProductName, it.Variant,
			it.Quantity, it.UnitPrice, it.Subtotal,
		)
	}
	for _, sh := range shipments {
		batch.Queue(insertShipmentSQL,
			sh.ID, sh.ProductName, sh.Variant, sh.Address, sh.UserID, sh.Status,
		)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()

	for range batch.Len() {
		if _, err := results.Exec(); err != nil {
			return errors.Wrap(err, "insert invoice children")
		}
	}
	return nil
}

// GetInvoice returns an invoice and its items.
func (r *CheckoutRepository) GetInvoice(ctx context.Context, id string) (*checkout.Invoice, []checkout.InvoiceItem, error) {
	rows, err := r.pool.Query(ctx, getInvoiceSQL, id)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "get invoice %q", id)
	}

	inv, err := pgx.CollectExactlyOneRow(rows, scanInvoice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, checkout.ErrInvoiceNotFound
		}
		return nil, nil, errors.Wrapf(err, "get invoice %q", id)
	}

	itemRows, err := r.pool.Query(ctx, getInvoiceItemsSQL, id)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "get invoice items %q", id)
	}
	items, err := pgx.CollectRows(itemRows, scanInvoiceItem)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "get invoice items %q", id)
	}

	return &inv, items, nil
}

// ListInvoices returns all invoices, newest first.
func (r *CheckoutRepository) ListInvoices(ctx context.Context) ([]checkout.Invoice, error) {
	rows, err := r.pool.Query(ctx, listInvoicesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list invoices")
	}
	return pgx.CollectRows(rows, scanInvoice)
}

// ListShipments returns all shipment records, newest first.
func (r *CheckoutRepository) ListShipments(ctx context.Context) ([]checkout.Shipment, error) {
	rows, err := r.pool.Query(ctx, listShipmentsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list shipments")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (checkout.Shipment, error) {
		var sh checkout.Shipment
		err := row.Scan(&sh.ID, &sh.ProductName, &sh.Variant, &sh.Address, &sh.UserID, &sh.Status, &sh.CreatedAt)
		return sh, err
	})
}

func scanInvoice(row pgx.CollectableRow) (checkout.Invoice, error) {
	var (
		inv    checkout.Invoice
		status string
	)
	err := row.Scan(&inv.ID, &inv.UserID, &inv.ShippingAddress, &status, &inv.Total, &inv.CreatedAt)
	inv.Status = checkout.Status(status)
	return inv, err
}

func scanInvoiceItem(row pgx.CollectableRow) (checkout.InvoiceItem, error) {
	var it checkout.InvoiceItem
	err := row.Scan(
		&it.ID, &it.InvoiceID, &it.ProductID, &it.ProductName,
		&it.Variant, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.CreatedAt,
	)
	return it, err
}
