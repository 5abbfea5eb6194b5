package dto

// AccessCodesResponse Access Code List de un usuario.
type AccessCodesResponse struct {
	UserID string   `json:"user_id"`
	Codes  []string `json:"codes"`
}

// SetAccessCodesRequest reemplazo completo de los códigos de un usuario.
type SetAccessCodesRequest struct {
	Codes []string `json:"codes" validate:"max=200,dive,required,max=8"`
}
