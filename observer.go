package cartstore

import (
	"sync"

	"goflare.io/cartstore/models"
)

// observers holds the subscriber callbacks in registration order.
type observers struct {
	mu     sync.Mutex
	nextID int
	list   []observer
}

type observer struct {
	id int
	fn func(models.Cart)
}

func (o *observers) add(fn func(models.Cart)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	id := o.nextID
	o.list = append(o.list, observer{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *observers) remove(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, obs := range o.list {
		if obs.id == id {
			o.list = append(o.list[:i:i], o.list[i+1:]...)
			return
		}
	}
}

func (o *observers) publish(cart models.Cart) {
	o.mu.Lock()
	list := make([]observer, len(o.list))
	copy(list, o.list)
	o.mu.Unlock()

	for _, obs := range list {
		obs.fn(cart.Clone())
	}
}
