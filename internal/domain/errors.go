package domain

import "errors"

var (
	ErrCartNotFound       = errors.New("cart not found")
	ErrEmptyCart          = errors.New("cannot check out an empty cart")
	ErrCartItemNotFound   = errors.New("cart item not found")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidProduct     = errors.New("product requires a name, a slug and a non-negative stock")
	ErrInvalidPrice       = errors.New("price must be greater than 0")
	ErrSlugTaken          = errors.New("product slug already in use")
	ErrProductInUse       = errors.New("product is referenced by existing orders")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrInvalidCollection  = errors.New("collection requires a name")
	ErrCollectionInUse    = errors.New("collection still has products")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrInvalidTransition  = errors.New("order status transition not allowed")
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")

	// ErrStorageTransaction marks a transaction that was rolled back because
	// of a storage failure. Retrying the whole operation is safe.
	ErrStorageTransaction = errors.New("storage transaction failed")
)
