package relay_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/clinica-suite/internal/client/relay"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestHandoffURL(t *testing.T) {
	got, err := relay.HandoffURL("https://billing.clinica.test/?tab=2", "h.p.s")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.clinica.test/?tab=2&token=h.p.s", got)

	got, err = relay.HandoffURL("https://billing.clinica.test/?token=viejo", "nuevo")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.clinica.test/?token=nuevo", got)
}

func TestHandoffURL_Errores(t *testing.T) {
	_, err := relay.HandoffURL("https://x.test/", "")
	assert.ErrorIs(t, err, relay.ErrEmptyToken)

	_, err = relay.HandoffURL("/relativa", "t")
	assert.Error(t, err)

	_, err = relay.HandoffURL("http://[::1", "t")
	assert.Error(t, err)
}

func TestExtract_RoundTrip(t *testing.T) {
	raw, err := relay.HandoffURL("https://inventory.clinica.test/stock?bodega=1#top", "h.p.s")
	require.NoError(t, err)

	token, cleaned, ok := relay.Extract(mustParse(t, raw))
	require.True(t, ok)
	assert.Equal(t, "h.p.s", token)
	assert.Equal(t, "https://inventory.clinica.test/stock?bodega=1#top", cleaned.String())
}

func TestExtract_NoModificaLaOriginal(t *testing.T) {
	u := mustParse(t, "https://a.test/?token=abc&x=1")

	_, cleaned, ok := relay.Extract(u)
	require.True(t, ok)
	assert.Equal(t, "token=abc&x=1", u.RawQuery)
	assert.Equal(t, "x=1", cleaned.RawQuery)
}

func TestExtract_Idempotente(t *testing.T) {
	u := mustParse(t, "https://a.test/agenda?dia=lunes")

	token, cleaned, ok := relay.Extract(u)
	assert.False(t, ok)
	assert.Empty(t, token)
	assert.Same(t, u, cleaned)

	_, again, ok := relay.Extract(cleaned)
	assert.False(t, ok)
	assert.Same(t, u, again)
}

func TestExtract_ParametroVacio(t *testing.T) {
	_, cleaned, ok := relay.Extract(mustParse(t, "https://a.test/?token="))
	assert.False(t, ok)
	assert.Equal(t, "https://a.test/", cleaned.String())
}

func TestExtract_Nil(t *testing.T) {
	_, cleaned, ok := relay.Extract(nil)
	assert.False(t, ok)
	assert.Nil(t, cleaned)
}

func TestExtract_ConservaElRestoDelQueryTalCual(t *testing.T) {
	u := mustParse(t, "https://a.test/citas?z=2&token=abc&a=b%20c&q=%7E#lista")

	token, cleaned, ok := relay.Extract(u)
	require.True(t, ok)
	assert.Equal(t, "abc", token)
	assert.Equal(t, "z=2&a=b%20c&q=%7E", cleaned.RawQuery, "sin reordenar ni re-escapar")
	assert.Equal(t, "https://a.test/citas?z=2&a=b%20c&q=%7E#lista", cleaned.String())
}

func TestHandoffURL_ConservaElOrdenDelDestino(t *testing.T) {
	got, err := relay.HandoffURL("https://billing.clinica.test/?z=1&token=viejo&a=%7E", "h.p.s")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.clinica.test/?z=1&a=%7E&token=h.p.s", got)
}
