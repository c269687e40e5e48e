package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Zhima-Mochi/juice-vending/internal/domain/cash"
	"github.com/Zhima-Mochi/juice-vending/internal/domain/inventory"
	"github.com/Zhima-Mochi/juice-vending/internal/domain/machine"
)

var _ machine.Store = (*MachineStore)(nil)

// MachineStore keeps the slots and the vault in memory for the life of the process.
// Reads return copies; Settle is the only writer.
type MachineStore struct {
	mu       sync.RWMutex
	products map[int]*inventory.Product
	ids      []int
	vault    *cash.Vault
}

func NewMachineStore(products []*inventory.Product, vault *cash.Vault) (*MachineStore, error) {
	if vault == nil {
		return nil, fmt.Errorf("machine store: vault is required")
	}
	s := &MachineStore{
		products: make(map[int]*inventory.Product, len(products)),
		vault:    vault.Clone(),
	}
	for _, p := range products {
		if p == nil {
			continue
		}
		if _, dup := s.products[p.ID]; dup {
			return nil, fmt.Errorf("machine store: duplicate product id %d", p.ID)
		}
		s.products[p.ID] = p.Clone()
		s.ids = append(s.ids, p.ID)
	}
	sort.Ints(s.ids)
	return s, nil
}

func (s *MachineStore) List(ctx context.Context) ([]*inventory.Product, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(), nil
}

func (s *MachineStore) Get(ctx context.Context, id int) (*inventory.Product, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MachineStore) Vault(ctx context.Context) (*cash.Vault, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vault.Clone(), nil
}

func (s *MachineStore) Snapshot(ctx context.Context) (machine.Snapshot, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()
	return machine.Snapshot{Products: s.listLocked(), Vault: s.vault.Clone()}, nil
}

// Settle sells from the slot and deposits into the vault as one commit. Both
// mutations run on copies and are swapped in together, so a failure in either
// leaves the store as it was.
func (s *MachineStore) Settle(ctx context.Context, st machine.Settlement) (machine.Result, error) {
	if err := ctx.Err(); err != nil {
		return machine.Result{}, err
	}
	if err := st.Validate(); err != nil {
		return machine.Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[st.ProductID]
	if !ok {
		return machine.Result{}, fmt.Errorf("settle product %d: %w", st.ProductID, inventory.ErrNotFound)
	}

	product := current.Clone()
	if err := product.Slot.Sell(st.Quantity); err != nil {
		return machine.Result{}, fmt.Errorf("settle product %d: %w", st.ProductID, err)
	}
	vault := s.vault.Clone()
	if err := vault.Deposit(st.Amount); err != nil {
		return machine.Result{}, fmt.Errorf("settle deposit: %w", err)
	}

	s.products[st.ProductID] = product
	s.vault = vault

	return machine.Result{
		RemainingStock: product.Slot.AvailableQuantity(),
		Balance:        vault.Balance(),
	}, nil
}

func (s *MachineStore) listLocked() []*inventory.Product {
	out := make([]*inventory.Product, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.products[id].Clone())
	}
	return out
}
