package cartstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/cartstore/cart"
	"goflare.io/cartstore/driver"
	"goflare.io/cartstore/internal/apitest"
	"goflare.io/cartstore/models"
	"goflare.io/cartstore/models/enum"
	"goflare.io/cartstore/notify"
	"goflare.io/cartstore/product"
	"goflare.io/cartstore/stock"
	"goflare.io/cartstore/storage"
)

var (
	sneaker1 = models.Product{ID: 1, Title: "Tênis de Caminhada Leve Confortável", Price: 179.9, Image: "https://example.com/tenis1.jpg"}
	sneaker2 = models.Product{ID: 2, Title: "Tênis VR Caminhada Confortável Detalhes Couro Masculino", Price: 139.9, Image: "https://example.com/tenis2.jpg"}
	sneaker3 = models.Product{ID: 3, Title: "Tênis Adidas Duramo Lite 2.0", Price: 219.9, Image: "https://example.com/tenis3.jpg"}
)

func item(p models.Product, amount int) models.LineItem {
	li := models.NewLineItem(&p)
	li.Amount = amount
	return li
}

// failingStorage wraps a storage and fails every Set while fail is true.
type failingStorage struct {
	storage.Storage
	mu   sync.Mutex
	fail bool
}

func (f *failingStorage) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("storage quota exceeded")
	}
	return f.Storage.Set(ctx, key, value)
}

type fixture struct {
	api      *apitest.Server
	storage  *failingStorage
	cartRepo cart.Repository
	store    Store
}

// newFixture persists initial, starts a fake catalog with the three sneakers and
// opens a store on top of both.
func newFixture(t *testing.T, initial models.Cart) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	api := apitest.NewServer(t)
	for _, p := range []models.Product{sneaker1, sneaker2, sneaker3} {
		api.SetProduct(p)
	}

	client, err := driver.NewAPIClient(api.URL, time.Second, driver.BreakerSettings{
		ConsecutiveFailures: 100,
		OpenTimeout:         time.Second,
	}, logger)
	require.NoError(t, err)

	s := &failingStorage{Storage: storage.NewMemory()}
	cartRepo := cart.NewRepository(s, "", logger)
	if initial != nil {
		require.NoError(t, cartRepo.Save(ctx, initial))
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	st, err := NewStore(ctx, cartRepo, stock.NewRepository(client, validate, logger), product.NewRepository(client, validate, logger), logger)
	require.NoError(t, err)

	return &fixture{api: api, storage: s, cartRepo: cartRepo, store: st}
}

// persisted reloads the cart from storage.
func (f *fixture) persisted(t *testing.T) models.Cart {
	t.Helper()
	c, err := f.cartRepo.Load(context.Background())
	require.NoError(t, err)
	return c
}

func (f *fixture) failWrites(fail bool) {
	f.storage.mu.Lock()
	f.storage.fail = fail
	f.storage.mu.Unlock()
}

func requireKind(t *testing.T, err error, op enum.Operation, kind enum.FailureKind) {
	t.Helper()
	var cartErr *Error
	require.ErrorAs(t, err, &cartErr)
	assert.Equal(t, op, cartErr.Op)
	assert.Equal(t, kind, cartErr.Kind)
}

func Test_NewStore_Empty(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, models.Cart{}, f.store.Cart())
}

func Test_NewStore_LoadsPersistedCart(t *testing.T) {
	initial := models.Cart{item(sneaker2, 3), item(sneaker1, 1)}

	f := newFixture(t, initial)

	assert.Equal(t, initial, f.store.Cart())
}

func Test_NewStore_CorruptCart(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	require.NoError(t, mem.Set(ctx, cart.StorageKey, []byte(`[{"id":1,"amount":-2}]`)))

	_, err := NewStore(ctx, cart.NewRepository(mem, "", zap.NewNop()), nil, nil, zap.NewNop())

	assert.ErrorIs(t, err, cart.ErrCorruptCart)
}

func Test_Store_Cart_ReturnsCopy(t *testing.T) {
	f := newFixture(t, models.Cart{item(sneaker1, 1)})

	c := f.store.Cart()
	c[0].Amount = 50

	assert.Equal(t, 1, f.store.Cart().Amount(1))
}

func Test_Store_AddProduct_NewItem(t *testing.T) {
	// given
	f := newFixture(t, models.Cart{item(sneaker2, 1)})
	f.api.SetStock(1, 5)

	// when
	err := f.store.AddProduct(context.Background(), 1)

	// then
	require.NoError(t, err)
	want := models.Cart{item(sneaker2, 1), item(sneaker1, 1)}
	assert.Equal(t, want, f.store.Cart())
	assert.Equal(t, want, f.persisted(t))
	assert.Equal(t, 1, f.api.Hits("/stock/1"))
	assert.Equal(t, 1, f.api.Hits("/products/1"))
}

func Test_Store_AddProduct_IncrementsExisting(t *testing.T) {
	// given
	f := newFixture(t, models.Cart{item(sneaker1, 2), item(sneaker3, 1)})
	f.api.SetStock(1, 5)

	// when
	err := f.store.AddProduct(context.Background(), 1)

	// then
	require.NoError(t, err)
	want := models.Cart{item(sneaker1, 3), item(sneaker3, 1)}
	assert.Equal(t, want, f.store.Cart())
	assert.Equal(t, want, f.persisted(t))
	assert.Zero(t, f.api.Hits("/products/1"), "known items must not refetch the product")
}

func Test_Store_AddProduct_OutOfStock(t *testing.T) {
	testCases := []struct {
		name    string
		initial models.Cart
		stock   int
	}{
		{name: "no stock for new item", initial: models.Cart{}, stock: 0},
		{name: "held equals stock", initial: models.Cart{item(sneaker1, 3)}, stock: 3},
		{name: "held exceeds stock", initial: models.Cart{item(sneaker1, 4)}, stock: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			f := newFixture(t, tc.initial)
			f.api.SetStock(1, tc.stock)
			var notified int
			f.store.Subscribe(func(models.Cart) { notified++ })

			// when
			err := f.store.AddProduct(context.Background(), 1)

			// then
			requireKind(t, err, enum.OperationAddProduct, enum.FailureKindOutOfStock)
			assert.ErrorIs(t, err, ErrOutOfStock)
			assert.Equal(t, tc.initial, f.store.Cart())
			assert.Equal(t, tc.initial, f.persisted(t))
			assert.Zero(t, notified)
			assert.Zero(t, f.api.Hits("/products/1"))
		})
	}
}

func Test_Store_AddProduct_RemoteFailure(t *testing.T) {
	testCases := []struct {
		name  string
		given func(api *apitest.Server)
	}{
		{
			name:  "stock service error",
			given: func(api *apitest.Server) { api.Fail("/stock/1", 500) },
		},
		{
			name:  "stock unknown",
			given: func(api *apitest.Server) {},
		},
		{
			name: "catalog error",
			given: func(api *apitest.Server) {
				api.SetStock(1, 5)
				api.Fail("/products/1", 503)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			initial := models.Cart{item(sneaker2, 1)}
			f := newFixture(t, initial)
			tc.given(f.api)

			// when
			err := f.store.AddProduct(context.Background(), 1)

			// then
			requireKind(t, err, enum.OperationAddProduct, enum.FailureKindRemoteFailure)
			assert.ErrorIs(t, err, ErrRemoteFailure)
			assert.ErrorIs(t, err, driver.ErrUnexpectedStatus)
			assert.Equal(t, initial, f.store.Cart())
			assert.Equal(t, initial, f.persisted(t))
		})
	}
}

type productFunc func(ctx context.Context, productID int) (*models.Product, error)

func (fn productFunc) GetProduct(ctx context.Context, productID int) (*models.Product, error) {
	return fn(ctx, productID)
}

type stockFunc func(ctx context.Context, productID int) (*models.Stock, error)

func (fn stockFunc) GetStock(ctx context.Context, productID int) (*models.Stock, error) {
	return fn(ctx, productID)
}

func Test_Store_AddProduct_CatalogReturnsOtherProduct(t *testing.T) {
	// given
	ctx := context.Background()
	repo := cart.NewRepository(storage.NewMemory(), "", zap.NewNop())
	stocks := stockFunc(func(_ context.Context, id int) (*models.Stock, error) {
		return &models.Stock{ID: id, Amount: 5}, nil
	})
	products := productFunc(func(context.Context, int) (*models.Product, error) {
		p := sneaker2
		return &p, nil
	})
	st, err := NewStore(ctx, repo, stocks, products, zap.NewNop())
	require.NoError(t, err)

	// when
	err = st.AddProduct(ctx, 1)

	// then
	requireKind(t, err, enum.OperationAddProduct, enum.FailureKindRemoteFailure)
	assert.Empty(t, st.Cart())
}

func Test_Store_AddProduct_StorageFailure(t *testing.T) {
	// given
	initial := models.Cart{item(sneaker1, 1)}
	f := newFixture(t, initial)
	f.api.SetStock(1, 5)
	f.api.SetStock(2, 5)
	var notified int
	f.store.Subscribe(func(models.Cart) { notified++ })
	f.failWrites(true)

	// when
	errIncrement := f.store.AddProduct(context.Background(), 1)
	errAppend := f.store.AddProduct(context.Background(), 2)

	// then
	requireKind(t, errIncrement, enum.OperationAddProduct, enum.FailureKindUnexpected)
	requireKind(t, errAppend, enum.OperationAddProduct, enum.FailureKindUnexpected)
	assert.ErrorIs(t, errAppend, ErrUnexpected)
	assert.Equal(t, initial, f.store.Cart())
	assert.Equal(t, initial, f.persisted(t))
	assert.Zero(t, notified)
}

func Test_Store_RemoveProduct(t *testing.T) {
	// given
	f := newFixture(t, models.Cart{item(sneaker1, 2), item(sneaker2, 1), item(sneaker3, 4)})

	// when
	err := f.store.RemoveProduct(context.Background(), 2)

	// then
	require.NoError(t, err)
	want := models.Cart{item(sneaker1, 2), item(sneaker3, 4)}
	assert.Equal(t, want, f.store.Cart())
	assert.Equal(t, want, f.persisted(t))
}

func Test_Store_RemoveProduct_NotFound(t *testing.T) {
	initial := models.Cart{item(sneaker1, 2)}
	f := newFixture(t, initial)

	err := f.store.RemoveProduct(context.Background(), 3)

	requireKind(t, err, enum.OperationRemoveProduct, enum.FailureKindNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, initial, f.store.Cart())
}

func Test_Store_RemoveProduct_StorageFailure(t *testing.T) {
	initial := models.Cart{item(sneaker1, 2)}
	f := newFixture(t, initial)
	f.failWrites(true)

	err := f.store.RemoveProduct(context.Background(), 1)

	requireKind(t, err, enum.OperationRemoveProduct, enum.FailureKindUnexpected)
	assert.Equal(t, initial, f.store.Cart())
	assert.Equal(t, initial, f.persisted(t))
}

func Test_Store_UpdateProductAmount(t *testing.T) {
	testCases := []struct {
		name   string
		amount int
		stock  int
		want   int
	}{
		{name: "below stock", amount: 3, stock: 5, want: 3},
		{name: "equal to stock", amount: 5, stock: 5, want: 5},
		{name: "decrease", amount: 1, stock: 5, want: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			f := newFixture(t, models.Cart{item(sneaker1, 2), item(sneaker2, 1)})
			f.api.SetStock(1, tc.stock)

			// when
			err := f.store.UpdateProductAmount(context.Background(), models.UpdateProductAmount{ProductID: 1, Amount: tc.amount})

			// then
			require.NoError(t, err)
			want := models.Cart{item(sneaker1, tc.want), item(sneaker2, 1)}
			assert.Equal(t, want, f.store.Cart())
			assert.Equal(t, want, f.persisted(t))
		})
	}
}

func Test_Store_UpdateProductAmount_NonPositiveIsNoop(t *testing.T) {
	for _, amount := range []int{0, -1, -100} {
		// given
		initial := models.Cart{item(sneaker1, 2)}
		f := newFixture(t, initial)
		f.api.SetStock(1, 5)
		var notified int
		f.store.Subscribe(func(models.Cart) { notified++ })

		// when
		err := f.store.UpdateProductAmount(context.Background(), models.UpdateProductAmount{ProductID: 1, Amount: amount})

		// then
		require.NoError(t, err)
		assert.Equal(t, initial, f.store.Cart())
		assert.Zero(t, f.api.Hits("/stock/1"), "amount %d must not reach the stock service", amount)
		assert.Zero(t, notified)
	}
}

func Test_Store_UpdateProductAmount_OutOfStock(t *testing.T) {
	initial := models.Cart{item(sneaker1, 2)}
	f := newFixture(t, initial)
	f.api.SetStock(1, 5)

	err := f.store.UpdateProductAmount(context.Background(), models.UpdateProductAmount{ProductID: 1, Amount: 6})

	requireKind(t, err, enum.OperationUpdateProductAmount, enum.FailureKindOutOfStock)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, initial, f.store.Cart())
	assert.Equal(t, initial, f.persisted(t))
}

func Test_Store_UpdateProductAmount_RemoteFailure(t *testing.T) {
	initial := models.Cart{item(sneaker1, 2)}
	f := newFixture(t, initial)
	f.api.Fail("/stock/1", 502)

	err := f.store.UpdateProductAmount(context.Background(), models.UpdateProductAmount{ProductID: 1, Amount: 3})

	requireKind(t, err, enum.OperationUpdateProductAmount, enum.FailureKindRemoteFailure)
	assert.Equal(t, initial, f.store.Cart())
}

func Test_Store_UpdateProductAmount_StorageFailure(t *testing.T) {
	initial := models.Cart{item(sneaker1, 2)}
	f := newFixture(t, initial)
	f.api.SetStock(1, 5)
	f.failWrites(true)

	err := f.store.UpdateProductAmount(context.Background(), models.UpdateProductAmount{ProductID: 1, Amount: 3})

	requireKind(t, err, enum.OperationUpdateProductAmount, enum.FailureKindUnexpected)
	assert.Equal(t, initial, f.store.Cart())
	assert.Equal(t, initial, f.persisted(t))
}

func Test_Store_UpdateProductAmount_AbsentItem(t *testing.T) {
	initial := models.Cart{item(sneaker1, 2)}
	f := newFixture(t, initial)
	f.api.SetStock(3, 5)

	err := f.store.UpdateProductAmount(context.Background(), models.UpdateProductAmount{ProductID: 3, Amount: 2})

	require.NoError(t, err)
	assert.Equal(t, initial, f.store.Cart())
	assert.Equal(t, initial, f.persisted(t))
}

func Test_Store_Subscribe(t *testing.T) {
	// given
	f := newFixture(t, nil)
	f.api.SetStock(1, 5)
	ctx := context.Background()

	var first, second []models.Cart
	unsubscribeFirst := f.store.Subscribe(func(c models.Cart) { first = append(first, c) })
	f.store.Subscribe(func(c models.Cart) { second = append(second, c) })

	// when
	require.NoError(t, f.store.AddProduct(ctx, 1))
	unsubscribeFirst()
	unsubscribeFirst()
	require.NoError(t, f.store.AddProduct(ctx, 1))

	// then
	assert.Equal(t, []models.Cart{{item(sneaker1, 1)}}, first)
	assert.Equal(t, []models.Cart{{item(sneaker1, 1)}, {item(sneaker1, 2)}}, second)
}

func Test_Store_Subscribe_ReceivesCopy(t *testing.T) {
	f := newFixture(t, nil)
	f.api.SetStock(1, 5)
	f.store.Subscribe(func(c models.Cart) { c[0].Amount = 99 })

	require.NoError(t, f.store.AddProduct(context.Background(), 1))

	assert.Equal(t, 1, f.store.Cart().Amount(1))
}

func Test_Store_RoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	f.api.SetStock(1, 5)
	f.api.SetStock(2, 5)
	f.api.SetStock(3, 5)
	ctx := context.Background()

	steps := []func() error{
		func() error { return f.store.AddProduct(ctx, 3) },
		func() error { return f.store.AddProduct(ctx, 1) },
		func() error { return f.store.AddProduct(ctx, 3) },
		func() error { return f.store.AddProduct(ctx, 2) },
		func() error {
			return f.store.UpdateProductAmount(ctx, models.UpdateProductAmount{ProductID: 2, Amount: 4})
		},
		func() error { return f.store.RemoveProduct(ctx, 3) },
	}

	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		assert.Equal(t, f.store.Cart(), f.persisted(t), "step %d", i)
	}
	assert.Equal(t, models.Cart{item(sneaker1, 1), item(sneaker2, 4)}, f.store.Cart())
}

func Test_Store_ConcurrentMutations(t *testing.T) {
	// given
	f := newFixture(t, nil)
	f.api.SetStock(1, 100)
	f.api.SetStock(2, 100)
	ctx := context.Background()

	// when
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.store.AddProduct(ctx, 1+i%2)
		}()
	}
	wg.Wait()

	// then
	c := f.store.Cart()
	require.NoError(t, c.Validate())
	assert.Equal(t, c, f.persisted(t))
	for _, li := range c {
		assert.LessOrEqual(t, li.Amount, 10)
	}
}

func Test_Store_Scenario(t *testing.T) {
	// given
	f := newFixture(t, nil)
	f.api.SetStock(1, 5)
	recorder := notify.NewRecorder()
	provider := NewProvider(f.store, recorder, zap.NewNop())
	ctx := context.Background()

	// when / then
	provider.AddProduct(ctx, 1)
	assert.Equal(t, models.Cart{item(sneaker1, 1)}, provider.Cart())

	provider.AddProduct(ctx, 1)
	assert.Equal(t, models.Cart{item(sneaker1, 2)}, provider.Cart())

	provider.UpdateProductAmount(ctx, models.UpdateProductAmount{ProductID: 1, Amount: 10})
	assert.Equal(t, models.Cart{item(sneaker1, 2)}, provider.Cart())
	require.Len(t, recorder.Notifications(), 1)
	assert.Equal(t, models.Notification{
		Operation: enum.OperationUpdateProductAmount,
		Kind:      enum.FailureKindOutOfStock,
		ProductID: 1,
		Message:   "requested quantity is out of stock",
	}, recorder.Notifications()[0])

	provider.RemoveProduct(ctx, 1)
	assert.Equal(t, models.Cart{}, provider.Cart())
	assert.Equal(t, models.Cart{}, f.persisted(t))
	assert.Len(t, recorder.Notifications(), 1)
}
