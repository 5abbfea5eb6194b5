// Package guard impide mostrar vistas privilegiadas antes de que exista una sesión.
// No hace chequeos finos: eso queda a la tabla de permisos y a los access codes.
package guard

import (
	"net/url"

	"github.com/jhoicas/clinica-suite/internal/client/session"
)

// RedirectParam query param con la URL de retorno tras el login.
const RedirectParam = "redirect"

// Decision resultado de evaluar la ruta protegida.
type Decision int

const (
	// DecisionWait la sesión aún no se asienta: no renderizar nada.
	DecisionWait Decision = iota
	// DecisionRedirect sin sesión: navegación completa al login.
	DecisionRedirect
	// DecisionRender hay sesión: renderizar la vista.
	DecisionRender
)

func (d Decision) String() string {
	switch d {
	case DecisionWait:
		return "wait"
	case DecisionRedirect:
		return "redirect"
	case DecisionRender:
		return "render"
	}
	return "unknown"
}

// SessionSource lo que el guard necesita del Provider.
type SessionSource interface {
	Get() session.Snapshot
}

// Guard protege vistas de una app cliente.
type Guard struct {
	sessions SessionSource
	nav      session.Navigator
	loginURL string
}

// New construye el guard. loginURL es el punto de entrada compartido (portal).
func New(sessions SessionSource, nav session.Navigator, loginURL string) *Guard {
	return &Guard{sessions: sessions, nav: nav, loginURL: loginURL}
}

// Evaluate decide sin efectos secundarios.
func (g *Guard) Evaluate() Decision {
	return decide(g.sessions.Get())
}

func decide(snap session.Snapshot) Decision {
	switch {
	case snap.IsLoading:
		return DecisionWait
	case snap.Session == nil:
		return DecisionRedirect
	default:
		return DecisionRender
	}
}

// Protect ejecuta render sólo si hay sesión; sin sesión redirige al login con la URL actual
// como destino de retorno. Devuelve la decisión tomada.
func (g *Guard) Protect(render func(*session.Session)) Decision {
	snap := g.sessions.Get()
	d := decide(snap)
	switch d {
	case DecisionRedirect:
		g.nav.Redirect(g.LoginRedirectURL())
	case DecisionRender:
		render(snap.Session)
	}
	return d
}

// LoginRedirectURL <loginURL>?redirect=<url actual>.
func (g *Guard) LoginRedirectURL() string {
	u, err := url.Parse(g.loginURL)
	if err != nil {
		return g.loginURL
	}
	current := g.nav.Current()
	if current == nil {
		return u.String()
	}
	q := u.Query()
	q.Set(RedirectParam, current.String())
	u.RawQuery = q.Encode()
	return u.String()
}
