package models

import "time"

// Role определяет роль пользователя в маркетплейсе
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleClinic   Role = "CLINIC"
	RoleVendor   Role = "VENDOR"
	RoleAdmin    Role = "ADMIN"
)

// User представляет пользователя
type User struct {
	ID        int64
	Email     string
	PassHash  []byte
	Role      Role
	CreatedAt time.Time
}

// HasRole проверяет, что роль пользователя входит в переданный список
func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
