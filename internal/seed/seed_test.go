package seed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/catalog"
	"github.com/roach88/tableside/internal/model"
	"github.com/roach88/tableside/internal/tables"
	"github.com/roach88/tableside/internal/testutil"
)

func TestLoad(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "menu.cue"))
	require.NoError(t, err)

	require.Len(t, f.Products, 3)
	assert.Equal(t, Product{Name: "Burger", ImageURL: "https://img.example.com/burger.png", Quantity: 20}, f.Products[0])
	assert.Equal(t, Product{Name: "Fries", Quantity: 50}, f.Products[1], "image_url defaults to empty")
	assert.Equal(t, []int{1, 2, 3, 4}, f.Tables)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	assert.Error(t, err)
}

func TestParse_Defaults(t *testing.T) {
	f, err := Parse("empty.cue", []byte(``))
	require.NoError(t, err)
	assert.Empty(t, f.Products)
	assert.Empty(t, f.Tables)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "negative quantity", src: `products: [{name: "Tea", quantity: -1}]`},
		{name: "missing quantity", src: `products: [{name: "Tea"}]`},
		{name: "empty name", src: `products: [{name: "", quantity: 1}]`},
		{name: "unknown field", src: `products: [{name: "Tea", quantity: 1, price: 3}]`},
		{name: "zero table", src: `tables: [0]`},
		{name: "unknown top-level field", src: `menus: []`},
		{name: "syntax error", src: `products: [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(tt.src))
			require.Error(t, err)
			var seedErr *Error
			assert.ErrorAs(t, err, &seedErr)
		})
	}
}

func TestApply(t *testing.T) {
	st := testutil.OpenStore(t)
	logger := testutil.DiscardLogger()
	c := catalog.New(st, catalog.WithIDGenerator(model.NewSequenceGenerator("p")), catalog.WithLogger(logger))
	r := tables.New(st, tables.WithIDGenerator(model.NewSequenceGenerator("t")), tables.WithLogger(logger))
	ctx := context.Background()

	f, err := Load(filepath.Join("testdata", "menu.cue"))
	require.NoError(t, err)

	res, err := Apply(ctx, f, c, r)
	require.NoError(t, err)
	assert.Equal(t, Result{ProductsCreated: 3, TablesCreated: 4}, res)

	// Sell some lemonade, then reseed.
	_, err = c.Decrement(ctx, "p-3", 5)
	require.NoError(t, err)

	res, err = Apply(ctx, f, c, r)
	require.NoError(t, err)
	assert.Equal(t, Result{ProductsUpdated: 3, TablesSkipped: 4}, res)

	lemonade, err := c.Get(ctx, "p-3")
	require.NoError(t, err)
	assert.Equal(t, 8, lemonade.Quantity, "reseeding restocks")

	products, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 3)
}
