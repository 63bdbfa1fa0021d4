// Package seed loads menu and table fixtures from CUE files.
//
// A seed file is plain CUE validated against an embedded schema:
//
//	products: [
//		{name: "Burger", quantity: 20},
//		{name: "Fries", image_url: "https://img/fries.png", quantity: 50},
//	]
//	tables: [1, 2, 3]
//
// Unknown fields, negative quantities, and non-positive table numbers are
// rejected with the file position of the offending value.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tableside/internal/model"
)

//go:embed schema.cue
var schemaCUE string

// Product is one seeded menu entry.
type Product struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Quantity int    `json:"quantity"`
}

// File is a decoded seed file.
type File struct {
	Products []Product `json:"products"`
	Tables   []int     `json:"tables"`
}

// Error reports an invalid seed file.
type Error struct {
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(path, data)
}

// Parse validates CUE source against the seed schema and decodes it.
// filename is used for error positions only.
func Parse(filename string, data []byte) (*File, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile seed schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Seed")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var f File
	if err := unified.Decode(&f); err != nil {
		return nil, formatCUEError(err)
	}
	return &f, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}
	first := errs[0]
	e := &Error{Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}

// Catalog is the product administration a seed needs.
// Implemented by *catalog.Catalog.
type Catalog interface {
	List(ctx context.Context) ([]model.Product, error)
	Create(ctx context.Context, name, imageURL string, quantity int) (model.Product, error)
	Update(ctx context.Context, p model.Product) (model.Product, error)
}

// Tables is the table administration a seed needs.
// Implemented by *tables.Registry.
type Tables interface {
	Create(ctx context.Context, number int) (model.Table, error)
}

// Result counts what Apply changed.
type Result struct {
	ProductsCreated int `json:"products_created"`
	ProductsUpdated int `json:"products_updated"`
	TablesCreated   int `json:"tables_created"`
	TablesSkipped   int `json:"tables_skipped"`
}

// Apply loads f into the catalog and registry. A product whose name
// already exists has its image and quantity overwritten; an existing
// table number is skipped. Applying the same file twice is a no-op the
// second time apart from quantities being reset.
func Apply(ctx context.Context, f *File, c Catalog, t Tables) (Result, error) {
	var res Result

	existing, err := c.List(ctx)
	if err != nil {
		return res, err
	}
	byName := make(map[string]model.Product, len(existing))
	for _, p := range existing {
		byName[p.Name] = p
	}

	for _, sp := range f.Products {
		name := model.NormalizeName(sp.Name)
		if p, ok := byName[name]; ok {
			p.ImageURL = sp.ImageURL
			p.Quantity = sp.Quantity
			if _, err := c.Update(ctx, p); err != nil {
				return res, fmt.Errorf("update product %q: %w", name, err)
			}
			res.ProductsUpdated++
			continue
		}
		p, err := c.Create(ctx, name, sp.ImageURL, sp.Quantity)
		if err != nil {
			return res, fmt.Errorf("create product %q: %w", name, err)
		}
		byName[name] = p
		res.ProductsCreated++
	}

	for _, n := range f.Tables {
		_, err := t.Create(ctx, n)
		if errors.Is(err, model.ErrDuplicateTable) {
			res.TablesSkipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("create table %d: %w", n, err)
		}
		res.TablesCreated++
	}
	return res, nil
}
