package models

import (
	"errors"
	"fmt"
)

// Ошибки предметной области. Транспортный слой отображает их в HTTP-коды через errors.Is
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	// ErrNotFound покрывает и отсутствие ресурса, и чужой ресурс
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrEmptyCart  = errors.New("cart is empty")
	// ErrGenerationExhausted — не удалось подобрать свободный номер заказа
	ErrGenerationExhausted = errors.New("order number generation exhausted")

	ErrInvalidAddress    = fmt.Errorf("invalid address: %w", ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("invalid status transition: %w", ErrValidation)
)
