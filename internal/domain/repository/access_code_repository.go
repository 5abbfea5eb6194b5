package repository

import "context"

// AccessCodeRepository puerto de persistencia de la Access Code List por usuario.
type AccessCodeRepository interface {
	// ListByUser devuelve los códigos del usuario ordenados; lista vacía si no tiene.
	ListByUser(ctx context.Context, userID string) ([]string, error)
	// Replace reemplaza atómicamente todos los códigos del usuario.
	Replace(ctx context.Context, userID string, codes []string) error
}
