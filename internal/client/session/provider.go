// Package session servicio de sesión del lado cliente. La sesión nunca se persiste:
// siempre se deriva del token guardado en el almacenamiento durable.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jhoicas/clinica-suite/internal/client/relay"
	"github.com/jhoicas/clinica-suite/internal/client/storage"
	"github.com/jhoicas/clinica-suite/pkg/jwt"
	"github.com/jhoicas/clinica-suite/pkg/rbac"
	"github.com/rs/zerolog"
)

var (
	// ErrLoginFailed el servidor rechazó el login o devolvió un token inutilizable.
	ErrLoginFailed = errors.New("session: login fallido")
	// ErrLoginSuperseded un Logout ocurrió mientras el login estaba en vuelo; la respuesta se descarta.
	ErrLoginSuperseded = errors.New("session: login descartado por logout posterior")
)

// State estado del ciclo de vida de la sesión.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateLoading:
		return "LOADING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session proyección en memoria de quién está logueado. Permissions es advisory:
// sólo controla UI, el servidor decide.
type Session struct {
	ID          string
	Username    string
	FullName    string
	Role        string
	Permissions rbac.PermissionSet
	ExpiresAt   time.Time
}

// Snapshot vista consistente del estado. Con IsLoading=true, Session no está asentada.
type Snapshot struct {
	State     State
	Session   *Session
	IsLoading bool
}

// Navigator abstrae la barra de direcciones del host (navegador, CLI, tests).
type Navigator interface {
	// Current URL visible actual.
	Current() *url.URL
	// Replace reemplaza la URL visible sin agregar entrada al historial.
	Replace(u *url.URL)
	// Redirect navegación completa (no ruteo interno) a target.
	Redirect(target string)
}

// Authenticator llama al endpoint de login y devuelve el token emitido.
// Cualquier respuesta no exitosa es un error.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Deps colaboradores del Provider. Ephemeral es opcional.
type Deps struct {
	Durable   storage.Store
	Ephemeral *storage.Memory
	Auth      Authenticator
	Nav       Navigator
}

// Config rutas que el Provider necesita conocer.
type Config struct {
	// LoginPath ruta de la vista de login de esta app; ahí no se honra ?token=.
	LoginPath string
	// LoginURL punto de entrada compartido al que se navega tras el logout.
	LoginURL string
}

// Option configura el Provider.
type Option func(*Provider)

// WithClock reloj usado para decidir expiración.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// WithIssuer exige ese emisor al decodificar tokens.
func WithIssuer(issuer string) Option {
	return func(p *Provider) { p.issuer = issuer }
}

// Provider mantiene la sesión de una instancia de app cliente.
// Seguro para uso concurrente; los observadores se notifican fuera del lock.
type Provider struct {
	deps   Deps
	cfg    Config
	now    func() time.Time
	log    zerolog.Logger
	issuer string

	// storeMu serializa escrituras al storage durable con el cambio de estado que las acompaña.
	// mu protege el estado y nunca se retiene durante I/O.
	storeMu   sync.Mutex
	mu        sync.Mutex
	state     State
	session   *Session
	gen       uint64 // se incrementa en cada logout
	seq       uint64 // se incrementa en cada login aplicado y en cada logout
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewProvider construye el Provider en estado UNINITIALIZED.
func NewProvider(deps Deps, cfg Config, opts ...Option) *Provider {
	p := &Provider{
		deps:      deps,
		cfg:       cfg,
		now:       time.Now,
		log:       zerolog.Nop(),
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get devuelve el estado actual.
func (p *Provider) Get() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe registra fn para cada cambio de estado. Devuelve la función para desuscribir.
func (p *Provider) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Init aplica el relay de URL y deriva la sesión del token durable.
// Nunca falla: un token ilegible o expirado es simplemente "sin sesión" y se descarta.
// Si un Login o Logout se aplica mientras Init lee el storage, gana ese cambio y Init
// devuelve el estado vigente. Puede re-ejecutarse cuando el almacenamiento cambia.
func (p *Provider) Init(ctx context.Context) Snapshot {
	seq := p.beginLoading()

	p.consumeRelay(ctx)

	token, ok, err := p.deps.Durable.Get(ctx, storage.TokenKey)
	if err != nil {
		p.log.Warn().Err(err).Msg("no se pudo leer el token durable")
		return p.settle(seq, StateUnauthenticated, nil)
	}
	if !ok {
		return p.settle(seq, StateUnauthenticated, nil)
	}
	sess, err := p.derive(token)
	if err == nil {
		p.log.Debug().Str("user_id", sess.ID).Msg("sesión restaurada")
		return p.settle(seq, StateAuthenticated, sess)
	}

	p.log.Info().Err(err).Msg("token almacenado descartado")
	p.storeMu.Lock()
	if p.superseded(seq) {
		p.storeMu.Unlock()
		return p.Get()
	}
	if err := p.deps.Durable.Delete(ctx, storage.TokenKey); err != nil {
		p.log.Warn().Err(err).Msg("no se pudo borrar el token descartado")
	}
	p.storeMu.Unlock()
	return p.settle(seq, StateUnauthenticated, nil)
}

// consumeRelay persiste el ?token= de la URL visible y lo quita sin agregar historial.
// En la ruta de login sólo se limpia la URL: no se resucita una sesión recién cerrada.
func (p *Provider) consumeRelay(ctx context.Context) {
	if p.deps.Nav == nil {
		return
	}
	current := p.deps.Nav.Current()
	token, cleaned, ok := relay.Extract(current)
	if cleaned == current {
		return
	}
	if ok && !p.isLoginRoute(current) {
		p.storeMu.Lock()
		if err := p.deps.Durable.Set(ctx, storage.TokenKey, token); err != nil {
			p.log.Warn().Err(err).Msg("no se pudo persistir el token recibido por URL")
		}
		p.storeMu.Unlock()
	}
	p.deps.Nav.Replace(cleaned)
}

func (p *Provider) isLoginRoute(u *url.URL) bool {
	if p.cfg.LoginPath == "" || u == nil {
		return false
	}
	path := strings.TrimSuffix(u.Path, "/")
	return path == strings.TrimSuffix(p.cfg.LoginPath, "/")
}

// Login autentica contra el servidor. En éxito guarda el token y pasa a AUTHENTICATED;
// ante cualquier falla el estado queda intacto.
// Logins concurrentes: gana la última respuesta. Un Logout posterior al inicio de la
// llamada la invalida (ErrLoginSuperseded).
func (p *Provider) Login(ctx context.Context, username, password string) (*Session, error) {
	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	token, err := p.deps.Auth.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	sess, err := p.derive(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	p.storeMu.Lock()
	p.mu.Lock()
	superseded := p.gen != gen
	p.mu.Unlock()
	if superseded {
		p.storeMu.Unlock()
		p.log.Info().Str("username", username).Msg("respuesta de login descartada por logout")
		return nil, ErrLoginSuperseded
	}
	if err := p.deps.Durable.Set(ctx, storage.TokenKey, token); err != nil {
		p.storeMu.Unlock()
		return nil, fmt.Errorf("%w: guardar token: %w", ErrLoginFailed, err)
	}
	p.mu.Lock()
	p.seq++
	p.state = StateAuthenticated
	p.session = sess
	snap, listeners := p.snapshotLocked(), p.listenersLocked()
	p.mu.Unlock()
	p.storeMu.Unlock()

	p.log.Info().Str("user_id", sess.ID).Str("role", sess.Role).Msg("login exitoso")
	notify(listeners, snap)
	return copySession(sess), nil
}

// Logout limpia sesión y almacenamiento durable y efímero, y navega al login compartido.
// No falla: errores de almacenamiento sólo se registran. El borrado no se cancela con ctx.
func (p *Provider) Logout(ctx context.Context) {
	p.storeMu.Lock()
	p.mu.Lock()
	p.gen++
	p.seq++
	p.state = StateUnauthenticated
	p.session = nil
	snap, listeners := p.snapshotLocked(), p.listenersLocked()
	p.mu.Unlock()

	if err := p.deps.Durable.Delete(context.WithoutCancel(ctx), storage.TokenKey); err != nil {
		p.log.Error().Err(err).Msg("no se pudo borrar el token durable")
	}
	p.storeMu.Unlock()
	if p.deps.Ephemeral != nil {
		p.deps.Ephemeral.Clear()
	}

	p.log.Info().Msg("logout")
	notify(listeners, snap)
	if p.deps.Nav != nil && p.cfg.LoginURL != "" {
		p.deps.Nav.Redirect(p.cfg.LoginURL)
	}
}

// derive decodifica sin verificar firma (sólo UX) y rechaza tokens expirados.
func (p *Provider) derive(token string) (*Session, error) {
	var opts []jwt.Option
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	claims, err := jwt.Decode(token, opts...)
	if err != nil {
		return nil, err
	}
	if claims.ExpiredAt(p.now()) {
		return nil, fmt.Errorf("%w: token expirado", jwt.ErrInvalid)
	}
	return &Session{
		ID:          claims.UserID(),
		Username:    claims.Username(),
		FullName:    claims.FullName(),
		Role:        claims.Role(),
		Permissions: rbac.PermissionsFor(claims.Role()),
		ExpiresAt:   claims.ExpiresAt(),
	}, nil
}

// beginLoading pasa a LOADING y devuelve la secuencia vigente en el mismo paso.
func (p *Provider) beginLoading() uint64 {
	p.mu.Lock()
	p.state = StateLoading
	p.session = nil
	seq := p.seq
	snap, listeners := p.snapshotLocked(), p.listenersLocked()
	p.mu.Unlock()
	notify(listeners, snap)
	return seq
}

func (p *Provider) superseded(seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq != seq
}

// settle aplica el resultado de Init sólo si ningún Login/Logout se aplicó desde seq.
func (p *Provider) settle(seq uint64, state State, sess *Session) Snapshot {
	p.mu.Lock()
	if p.seq != seq {
		snap := p.snapshotLocked()
		p.mu.Unlock()
		p.log.Debug().Msg("init descartado: la sesión cambió durante la lectura")
		return snap
	}
	p.state = state
	p.session = sess
	snap, listeners := p.snapshotLocked(), p.listenersLocked()
	p.mu.Unlock()
	notify(listeners, snap)
	return snap
}

func (p *Provider) snapshotLocked() Snapshot {
	return Snapshot{
		State:     p.state,
		Session:   copySession(p.session),
		IsLoading: p.state == StateUninitialized || p.state == StateLoading,
	}
}

func (p *Provider) listenersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(p.listeners))
	for _, fn := range p.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}

func copySession(s *Session) *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Permissions = rbac.PermissionsFor(s.Role)
	return &c
}
