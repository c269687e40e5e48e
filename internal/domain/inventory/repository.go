package inventory

import "context"

// Repository reads the machine's catalog. Returned products are copies.
type Repository interface {
	List(ctx context.Context) ([]*Product, error)
	Get(ctx context.Context, id int) (*Product, error)
}
