package cartstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"goflare.io/cartstore/models"
	"goflare.io/cartstore/models/enum"
	"goflare.io/cartstore/notify"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Cart() models.Cart {
	args := m.Called()
	return args.Get(0).(models.Cart)
}

func (m *MockStore) Subscribe(fn func(models.Cart)) func() {
	args := m.Called(fn)
	return args.Get(0).(func())
}

func (m *MockStore) AddProduct(ctx context.Context, productID int) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *MockStore) RemoveProduct(ctx context.Context, productID int) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *MockStore) UpdateProductAmount(ctx context.Context, params models.UpdateProductAmount) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func Test_Provider_SuccessDoesNotNotify(t *testing.T) {
	// given
	store := new(MockStore)
	store.On("AddProduct", mock.Anything, 1).Return(nil)
	store.On("RemoveProduct", mock.Anything, 1).Return(nil)
	store.On("UpdateProductAmount", mock.Anything, models.UpdateProductAmount{ProductID: 1, Amount: 2}).Return(nil)
	recorder := notify.NewRecorder()
	p := NewProvider(store, recorder, zap.NewNop())
	ctx := context.Background()

	// when
	p.AddProduct(ctx, 1)
	p.UpdateProductAmount(ctx, models.UpdateProductAmount{ProductID: 1, Amount: 2})
	p.RemoveProduct(ctx, 1)

	// then
	assert.Empty(t, recorder.Notifications())
	store.AssertExpectations(t)
}

func Test_Provider_FailuresBecomeNotifications(t *testing.T) {
	// given
	store := new(MockStore)
	store.On("AddProduct", mock.Anything, 1).
		Return(newError(enum.OperationAddProduct, enum.FailureKindRemoteFailure, 1, errors.New("503")))
	store.On("RemoveProduct", mock.Anything, 2).
		Return(newError(enum.OperationRemoveProduct, enum.FailureKindNotFound, 2, ErrNotFound))
	store.On("UpdateProductAmount", mock.Anything, models.UpdateProductAmount{ProductID: 3, Amount: 9}).
		Return(newError(enum.OperationUpdateProductAmount, enum.FailureKindOutOfStock, 3, ErrOutOfStock))
	recorder := notify.NewRecorder()
	p := NewProvider(store, notify.Multi{notify.NewLogger(zap.NewNop()), recorder}, zap.NewNop())
	ctx := context.Background()

	// when
	p.AddProduct(ctx, 1)
	p.RemoveProduct(ctx, 2)
	p.UpdateProductAmount(ctx, models.UpdateProductAmount{ProductID: 3, Amount: 9})

	// then
	assert.Equal(t, []models.Notification{
		{Operation: enum.OperationAddProduct, Kind: enum.FailureKindRemoteFailure, ProductID: 1, Message: "failed to add product"},
		{Operation: enum.OperationRemoveProduct, Kind: enum.FailureKindNotFound, ProductID: 2, Message: "failed to remove product"},
		{Operation: enum.OperationUpdateProductAmount, Kind: enum.FailureKindOutOfStock, ProductID: 3, Message: "requested quantity is out of stock"},
	}, recorder.Notifications())
	store.AssertExpectations(t)
}

func Test_Provider_ForeignErrorIsUnexpected(t *testing.T) {
	store := new(MockStore)
	store.On("RemoveProduct", mock.Anything, 4).Return(errors.New("panic recovered"))
	recorder := notify.NewRecorder()
	p := NewProvider(store, recorder, zap.NewNop())

	p.RemoveProduct(context.Background(), 4)

	assert.Equal(t, []models.Notification{
		{Operation: enum.OperationRemoveProduct, Kind: enum.FailureKindUnexpected, ProductID: 4, Message: "failed to remove product"},
	}, recorder.Notifications())
}

func Test_Provider_DelegatesReads(t *testing.T) {
	store := new(MockStore)
	cart := models.Cart{{ID: 1, Title: "Tênis", Amount: 1}}
	store.On("Cart").Return(cart)
	var unsubscribed bool
	store.On("Subscribe", mock.Anything).Return(func() { unsubscribed = true })
	p := NewProvider(store, notify.NewRecorder(), zap.NewNop())

	assert.Equal(t, cart, p.Cart())
	p.Subscribe(func(models.Cart) {})()
	assert.True(t, unsubscribed)
}
