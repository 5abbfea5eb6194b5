package dto

import "time"

// LoginRequest entrada de POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

// UserResponse salida de un usuario (sin password) con sus permisos gruesos.
type UserResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	FullName    string   `json:"full_name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// LoginData carga útil de un login exitoso.
type LoginData struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// LoginResponse sobre de respuesta del login: {success, message, data?}.
// Un status no-2xx o success=false se trata igual en el cliente: login fallido.
type LoginResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    *LoginData `json:"data,omitempty"`
}

// MeResponse sesión derivada de un token ya verificado por el servidor.
type MeResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	FullName    string    `json:"full_name"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
