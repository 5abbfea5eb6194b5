package entity

import (
	"regexp"
	"time"
)

// accessCodePattern formato de los códigos de menú/recurso: prefijo de app en mayúsculas + número (AP0, AP20, BI3).
var accessCodePattern = regexp.MustCompile(`^[A-Z]{2,4}[0-9]{1,4}$`)

// AccessCode código fino resuelto en servidor que habilita un ítem de menú o acción.
// Es autoritativo sobre los permisos gruesos del rol.
type AccessCode struct {
	UserID    string
	Code      string
	GrantedAt time.Time
}

// ValidAccessCode informa si code respeta el formato esperado.
func ValidAccessCode(code string) bool {
	return accessCodePattern.MatchString(code)
}
