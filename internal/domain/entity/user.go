package entity

import "time"

// Estados de User. Sólo active puede iniciar sesión.
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

// User representa un usuario de la suite (pertenece a una clínica).
// El rol se valida contra pkg/rbac.
type User struct {
	ID           string
	ClinicID     string
	Username     string // normalizado (NFKC + case fold)
	FullName     string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	Role         string
	Status       string // active, inactive, suspended
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive informa si el usuario puede autenticarse.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
