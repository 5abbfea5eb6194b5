// Package relay traspaso de sesión entre apps alojadas por separado: la app origen agrega el
// token como query param a la URL destino y la app destino lo consume una sola vez.
//
// El token viaja en la URL (historial, cabecera Referer). Se acepta como riesgo residual;
// un código de intercambio de un solo uso sería la alternativa endurecida.
package relay

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Param nombre del query param que transporta la credencial.
const Param = "token"

// ErrEmptyToken no hay credencial que traspasar.
var ErrEmptyToken = errors.New("relay: token vacío")

// HandoffURL devuelve destination con token=<credential> agregado (reemplaza uno previo).
func HandoffURL(destination, token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	u, err := url.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("relay: destino inválido: %w", err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("relay: destino %q no es una URL absoluta", destination)
	}
	_, _, rest := splitToken(u.RawQuery)
	pair := Param + "=" + url.QueryEscape(token)
	if rest == "" {
		u.RawQuery = pair
	} else {
		u.RawQuery = rest + "&" + pair
	}
	return u.String(), nil
}

// Extract busca el parámetro en u. Si está, devuelve el token y una copia de u sin él;
// el resto del query se conserva byte a byte y en su orden, igual que el fragmento.
// Sin parámetro: ok=false y cleaned == u. Con ?token= vacío: ok=false, pero cleaned viene sin él.
func Extract(u *url.URL) (token string, cleaned *url.URL, ok bool) {
	if u == nil {
		return "", nil, false
	}
	token, found, rest := splitToken(u.RawQuery)
	if !found {
		return "", u, false
	}
	c := *u
	c.RawQuery = rest
	return token, &c, token != ""
}

// splitToken quita del query crudo todos los pares token=...; devuelve el valor del primero.
func splitToken(rawQuery string) (token string, found bool, rest string) {
	if rawQuery == "" {
		return "", false, ""
	}
	kept := make([]string, 0, strings.Count(rawQuery, "&")+1)
	for _, pair := range strings.Split(rawQuery, "&") {
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil || key != Param {
			kept = append(kept, pair)
			continue
		}
		if !found {
			token, _ = url.QueryUnescape(rawValue)
			found = true
		}
	}
	return token, found, strings.Join(kept, "&")
}
