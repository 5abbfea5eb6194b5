package access_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/clinica-suite/internal/application/access"
	"github.com/jhoicas/clinica-suite/internal/domain"
	"github.com/jhoicas/clinica-suite/internal/domain/entity"
	"github.com/jhoicas/clinica-suite/internal/infrastructure/cache"
)

type fakeCodes struct {
	mu     sync.Mutex
	codes  map[string][]string
	calls  int
	err    error
	onRead func() // se llama después de leer, fuera del lock
}

func (f *fakeCodes) ListByUser(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls++
	if f.err != nil {
		f.mu.Unlock()
		return nil, f.err
	}
	codes := append([]string{}, f.codes[userID]...)
	hook := f.onRead
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return codes, nil
}

func (f *fakeCodes) Replace(_ context.Context, userID string, codes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[userID] = append([]string{}, codes...)
	return nil
}

type fakeUsers struct{ ids map[string]bool }

func (f fakeUsers) Create(context.Context, *entity.User) error { return nil }
func (f fakeUsers) FindByUsername(context.Context, string) (*entity.User, error) {
	return nil, nil
}
func (f fakeUsers) FindByID(_ context.Context, id string) (*entity.User, error) {
	if !f.ids[id] {
		return nil, nil
	}
	return &entity.User{ID: id}, nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (string, error) { return "", errors.New("conn refused") }
func (brokenCache) Set(context.Context, string, string, time.Duration) error {
	return errors.New("conn refused")
}
func (brokenCache) Delete(context.Context, string) error { return errors.New("conn refused") }
func (brokenCache) Close() error                         { return nil }

func newService(c cache.Client) (*access.Service, *fakeCodes) {
	repo := &fakeCodes{codes: map[string][]string{"u1": {"AP0", "AP20", "BI3"}}}
	users := fakeUsers{ids: map[string]bool{"u1": true, "u2": true}}
	return access.NewService(repo, users, c, time.Minute, zerolog.Nop()), repo
}

func TestList_UsaCacheDespuesDeLaPrimeraLectura(t *testing.T) {
	svc, repo := newService(cache.NewMemory(time.Minute))
	ctx := context.Background()

	first, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	second, err := svc.List(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, []string{"AP0", "AP20", "BI3"}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.calls)
}

func TestList_UsuarioSinCodigos(t *testing.T) {
	svc, _ := newService(cache.NewMemory(time.Minute))

	codes, err := svc.List(context.Background(), "u2")
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestList_CacheCaidaCaeALaDB(t *testing.T) {
	svc, repo := newService(brokenCache{})

	codes, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, codes, 3)
	assert.Equal(t, 1, repo.calls)
}

func TestList_ErrorDeDB(t *testing.T) {
	svc, repo := newService(cache.NewMemory(time.Minute))
	repo.err = errors.New("timeout")

	_, err := svc.List(context.Background(), "u1")
	assert.EqualError(t, err, "timeout")
}

func TestList_UserIDVacio(t *testing.T) {
	svc, _ := newService(cache.NewMemory(time.Minute))

	_, err := svc.List(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHas(t *testing.T) {
	svc, _ := newService(cache.NewMemory(time.Minute))
	ctx := context.Background()

	ok, err := svc.Has(ctx, "u1", "AP20")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Has(ctx, "u1", "AP2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplace_InvalidaCache(t *testing.T) {
	mr := miniredis.RunT(t)
	svc, repo := newService(cache.NewRedis(mr.Addr(), 0, "test:"))
	ctx := context.Background()

	_, err := svc.List(ctx, "u1")
	require.NoError(t, err)

	saved, err := svc.Replace(ctx, "u1", []string{"IN4", "AP0", "IN4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AP0", "IN4"}, saved, "ordenados y sin duplicados")

	codes, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AP0", "IN4"}, codes)
	assert.Equal(t, 2, repo.calls)
}

func TestReplace_Validaciones(t *testing.T) {
	svc, _ := newService(cache.NewMemory(time.Minute))
	ctx := context.Background()

	_, err := svc.Replace(ctx, "u1", []string{"ap0"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Replace(ctx, "nadie", []string{"AP0"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

// Una lectura que empezó antes del reemplazo no puede dejar en caché un código revocado.
func TestReplace_LecturaConcurrenteNoCacheaCodigosRevocados(t *testing.T) {
	svc, repo := newService(cache.NewMemory(time.Minute))
	ctx := context.Background()

	read := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	repo.onRead = func() {
		once.Do(func() {
			close(read)
			<-release
		})
	}

	done := make(chan []string)
	go func() {
		codes, err := svc.List(ctx, "u1")
		assert.NoError(t, err)
		done <- codes
	}()

	<-read
	_, err := svc.Replace(ctx, "u1", []string{"AP0"})
	require.NoError(t, err)
	close(release)
	assert.Equal(t, []string{"AP0", "AP20", "BI3"}, <-done, "la lectura en vuelo ve el estado previo")

	ok, err := svc.Has(ctx, "u1", "AP20")
	require.NoError(t, err)
	assert.False(t, ok, "AP20 revocado no debe seguir en caché")

	codes, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AP0"}, codes)
}

func TestList_ContextoCanceladoNoAfectaLaCarga(t *testing.T) {
	svc, _ := newService(cache.NewMemory(time.Minute))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	codes, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"AP0", "AP20", "BI3"}, codes)
}
