package models

import "time"

// User is an API user. Non-admin users belong to exactly one entity and may
// only query data owned by it.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Rol          string    `json:"rol"` // admin, contador, usuario
	EntityID     *string   `json:"entity_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// User rol constants
const (
	RolAdmin    = "admin"
	RolContador = "contador"
	RolUsuario  = "usuario"
)
