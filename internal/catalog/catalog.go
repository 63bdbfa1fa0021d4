// Package catalog owns products and their quantity on hand.
//
// Stock only moves through Decrement (order placement) or an explicit
// admin set. Decrement is atomic per product; there is no atomicity
// across products.
package catalog

import (
	"context"
	"log/slog"

	"github.com/roach88/tableside/internal/model"
)

// Backend is the persistence the catalog needs.
// Implemented by *store.Store.
type Backend interface {
	InsertProduct(ctx context.Context, p model.Product) error
	GetProduct(ctx context.Context, id string) (model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) error
	SetProductQuantity(ctx context.Context, id string, quantity int) error
	DeleteProduct(ctx context.Context, id string) error
	DecrementProduct(ctx context.Context, id string, amount int) (int, error)
}

// Catalog is the product catalog.
//
// Thread-safety: safe for concurrent use. All serialization happens in
// the backend.
type Catalog struct {
	backend Backend
	ids     model.IDGenerator
	logger  *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithIDGenerator sets the generator for new product IDs.
func WithIDGenerator(ids model.IDGenerator) Option {
	return func(c *Catalog) {
		c.ids = ids
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// New creates a Catalog backed by backend.
func New(backend Backend, opts ...Option) *Catalog {
	c := &Catalog{
		backend: backend,
		ids:     model.UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the product with the given ID.
func (c *Catalog) Get(ctx context.Context, id string) (model.Product, error) {
	return c.backend.GetProduct(ctx, id)
}

// List returns every product ordered by name.
func (c *Catalog) List(ctx context.Context) ([]model.Product, error) {
	return c.backend.ListProducts(ctx)
}

// LowStock returns the products at or below threshold.
func (c *Catalog) LowStock(ctx context.Context, threshold int) ([]model.Product, error) {
	products, err := c.backend.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	low := []model.Product{}
	for _, p := range products {
		if p.LowStock(threshold) {
			low = append(low, p)
		}
	}
	return low, nil
}

// Decrement subtracts amount from a product's quantity and returns the
// new quantity. It fails with InvalidQuantity when amount is not
// positive, NotFound for an unknown product, and InsufficientStock when
// amount exceeds the quantity on hand (leaving it unchanged).
func (c *Catalog) Decrement(ctx context.Context, id string, amount int) (int, error) {
	if amount <= 0 {
		return 0, model.Errorf(model.ErrCodeInvalidQuantity, "decrement amount %d must be positive", amount).
			With("product_id", id)
	}
	remaining, err := c.backend.DecrementProduct(ctx, id, amount)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("stock decremented", "product_id", id, "amount", amount, "remaining", remaining)
	return remaining, nil
}

// Create adds a product with a fresh ID.
func (c *Catalog) Create(ctx context.Context, name, imageURL string, quantity int) (model.Product, error) {
	p := model.Product{
		ID:       c.ids.NewID(),
		Name:     model.NormalizeName(name),
		ImageURL: imageURL,
		Quantity: quantity,
	}
	if err := validate(p); err != nil {
		return model.Product{}, err
	}
	if err := c.backend.InsertProduct(ctx, p); err != nil {
		return model.Product{}, err
	}
	c.logger.Info("product created", "product_id", p.ID, "name", p.Name, "quantity", p.Quantity)
	return p, nil
}

// Update overwrites a product's name, image URL, and quantity.
func (c *Catalog) Update(ctx context.Context, p model.Product) (model.Product, error) {
	p.Name = model.NormalizeName(p.Name)
	if err := validate(p); err != nil {
		return model.Product{}, err
	}
	if err := c.backend.UpdateProduct(ctx, p); err != nil {
		return model.Product{}, err
	}
	c.logger.Info("product updated", "product_id", p.ID, "quantity", p.Quantity)
	return p, nil
}

// SetQuantity overwrites the quantity on hand.
func (c *Catalog) SetQuantity(ctx context.Context, id string, quantity int) error {
	if quantity < 0 {
		return model.Errorf(model.ErrCodeInvalidQuantity, "quantity %d must not be negative", quantity).
			With("product_id", id)
	}
	if err := c.backend.SetProductQuantity(ctx, id, quantity); err != nil {
		return err
	}
	c.logger.Info("product quantity set", "product_id", id, "quantity", quantity)
	return nil
}

// Delete removes a product. Orders referencing it keep their name
// snapshots.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.backend.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.logger.Info("product deleted", "product_id", id)
	return nil
}

func validate(p model.Product) error {
	if p.Name == "" {
		return model.Errorf(model.ErrCodeInvalidProduct, "product name is required")
	}
	if p.Quantity < 0 {
		return model.Errorf(model.ErrCodeInvalidQuantity, "quantity %d must not be negative", p.Quantity).
			With("product_id", p.ID)
	}
	return nil
}
