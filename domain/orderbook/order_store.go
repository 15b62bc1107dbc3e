package orderbook

import "fmt"

// OrderStore indexes live orders by id. It answers existence and
// cancellation lookups only; book ordering lives in BookSide.
type OrderStore struct {
	orders map[uint64]*Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[uint64]*Order)}
}

func (s *OrderStore) Insert(o *Order) error {
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("order %d: %w", o.ID, ErrDuplicateIdentifier)
	}
	s.orders[o.ID] = o
	return nil
}

func (s *OrderStore) Remove(id uint64) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	delete(s.orders, id)
	return o, nil
}

func (s *OrderStore) Get(id uint64) (*Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return o, nil
}

func (s *OrderStore) Len() int {
	return len(s.orders)
}

// each visits every live order in unspecified order.
func (s *OrderStore) each(fn func(*Order)) {
	for _, o := range s.orders {
		fn(o)
	}
}
