package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-passwordless/dialog"
	"github.com/jrsteele09/go-passwordless/dialog/staterepo"
	"github.com/jrsteele09/go-passwordless/events"
	"github.com/jrsteele09/go-passwordless/passwordless"
	"github.com/jrsteele09/go-passwordless/passwordless/providerfakes"
)

func testRegistry(t *testing.T) (*MachineRegistry, *int) {
	t.Helper()

	service, err := passwordless.NewService(providerfakes.NewFakeProvider())
	require.NoError(t, err)
	repo := staterepo.NewInMemoryRepo(time.Hour)
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	built := 0
	registry := NewMachineRegistry(func(key string, sink *TokenSink) (*dialog.Machine, error) {
		built++
		return dialog.NewMachine(service, repo, bus, key, dialog.WithOnTokens(sink.Put))
	})
	return registry, &built
}

func TestRegistryMintsTabCookieOnFirstContact(t *testing.T) {
	registry, built := testRegistry(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	tab, err := registry.Get(w, r)
	require.NoError(t, err)
	require.NotNil(t, tab.Machine)
	require.Equal(t, 1, *built)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, tabCookieName, cookies[0].Name)
	require.NotEmpty(t, cookies[0].Value)
}

func TestRegistryReusesMachineForSameTab(t *testing.T) {
	registry, built := testRegistry(t)

	w := httptest.NewRecorder()
	first, err := registry.Get(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	key := w.Result().Cookies()[0].Value

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: tabCookieName, Value: key})
	second, err := registry.Get(httptest.NewRecorder(), r)
	require.NoError(t, err)

	require.Same(t, first.Machine, second.Machine)
	require.Equal(t, 1, *built)
	require.Equal(t, 1, registry.Len())
}

func TestRegistryEvictsIdleMachines(t *testing.T) {
	registry, _ := testRegistry(t)

	now := time.Now()
	registry.nowTime = func() time.Time { return now }

	w := httptest.NewRecorder()
	_, err := registry.Get(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Equal(t, 1, registry.Len())

	now = now.Add(machineIdleTTL + time.Minute)

	// A later visitor's access sweeps the idle entry.
	_, err = registry.Get(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Equal(t, 1, registry.Len())
}

func TestTokenSinkTakeIsOneShot(t *testing.T) {
	sink := &TokenSink{}
	require.Nil(t, sink.Take())

	sink.Put(passwordless.Tokens{AccessToken: "access-1"})
	taken := sink.Take()
	require.NotNil(t, taken)
	require.Equal(t, "access-1", taken.AccessToken)
	require.Nil(t, sink.Take())
}
