package inventory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	server *httptest.Server
	mux    *http.ServeMux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mux := http.NewServeMux()
	ts := &testServer{server: httptest.NewServer(mux), mux: mux}
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) handleFunc(pattern string, handler http.HandlerFunc) {
	ts.mux.HandleFunc(pattern, handler)
}

func (ts *testServer) client(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(ts.server.URL, "ops", "secret", opts...)
	require.NoError(t, err)
	return c
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("inventory.local", "u", "p")
	assert.Error(t, err)

	_, err = NewClient("https://inventory.local/", "u", "p")
	assert.NoError(t, err)
}

func TestNewClient_HTTPClient(t *testing.T) {
	c, err := NewClient("https://inventory.local", "u", "p")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	require.IsType(t, &http.Transport{}, c.httpClient.Transport)
	assert.NotSame(t, http.DefaultTransport, c.httpClient.Transport, "the client owns its connection pool")

	c, err = NewClient("https://inventory.local", "u", "p", WithTimeout(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)

	custom := &http.Client{}
	c, err = NewClient("https://inventory.local", "u", "p", WithHTTPClient(custom))
	require.NoError(t, err)
	assert.Same(t, custom, c.httpClient)
}

func TestClient_PingUsesBasicAuth(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ops", user)
		assert.Equal(t, "secret", pass)
		jsonResponse(w, http.StatusOK, statusResponse{Status: "ok"})
	})

	require.NoError(t, ts.client(t).Ping(context.Background()))
}

func TestClient_ListHostsPages(t *testing.T) {
	ts := newTestServer(t)
	var pages []string
	ts.handleFunc("/api/hosts", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "hostgroup=web", q.Get("search"))
		assert.Equal(t, "2", q.Get("per_page"))
		pages = append(pages, q.Get("page"))

		page, _ := strconv.Atoi(q.Get("page"))
		results := []Host{{ID: page*2 - 1, Name: "web" + strconv.Itoa(page*2-1)}}
		if page < 2 {
			results = append(results, Host{ID: page * 2, Name: "web" + strconv.Itoa(page*2)})
		}
		jsonResponse(w, http.StatusOK, pagedResponse[Host]{Total: 3, Page: page, PerPage: 2, Results: results})
	})

	hosts, err := ts.client(t).ListHosts(context.Background(), "hostgroup=web", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"web1", "web2", "web3"}, Names(hosts))
	assert.Equal(t, []string{"1", "2"}, pages)
}

func TestClient_GetHost(t *testing.T) {
	ts := newTestServer(t)
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ts.handleFunc("/api/hosts/web1", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, Host{
			ID:   1,
			Name: "web1",
			Parameters: []Parameter{
				{Name: ReservedParameter, Value: "[QUEUED] tests", UpdatedAt: updated},
			},
		})
	})
	ts.handleFunc("/api/hosts/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})

	c := ts.client(t)
	host, err := c.GetHost(context.Background(), "web1")
	require.NoError(t, err)
	assert.Equal(t, "[QUEUED] tests", host.Reason())
	assert.True(t, host.Reserved())
	since, ok := host.ReservedSince()
	assert.True(t, ok)
	assert.True(t, since.Equal(updated))

	_, err = c.GetHost(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusNotFound, svcErr.StatusCode)
}

func TestClient_Reserve(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/hosts_reserve", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "hostgroup=web", q.Get("query"))
		assert.Equal(t, "2", q.Get("amount"))
		assert.Equal(t, "[QUEUED] ci", q.Get("reason"))
		jsonResponse(w, http.StatusOK, []Host{{ID: 1, Name: "web1"}})
	})

	hosts, err := ts.client(t).Reserve(context.Background(), "hostgroup=web", 2, "[QUEUED] ci")
	require.NoError(t, err)
	assert.Equal(t, []string{"web1"}, Names(hosts))
}

func TestClient_ReserveRejected(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/hosts_reserve", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not acceptable", http.StatusNotAcceptable)
	})

	_, err := ts.client(t).Reserve(context.Background(), "hostgroup=web", 2, "r")
	require.Error(t, err)
	assert.True(t, IsUnacceptable(err))
	assert.False(t, IsTransient(err))
}

func TestClient_ReleaseNothingMatched(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/hosts_release", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no hosts", http.StatusNotFound)
	})

	names, err := ts.client(t).Release(context.Background(), HostsQuery("gone1"))
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

func TestClient_Release(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/hosts_release", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "( name=a OR name=b )", r.URL.Query().Get("query"))
		jsonResponse(w, http.StatusOK, []string{"a", "b"})
	})

	names, err := ts.client(t).Release(context.Background(), HostsQuery("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestClient_UpdateHost(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/hosts/web1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"host":{"build":true,"hostgroup_id":7}}`, string(body))
		jsonResponse(w, http.StatusOK, Host{ID: 1, Name: "web1", Build: true})
	})

	build, group := true, 7
	host, err := ts.client(t).UpdateHost(context.Background(), "web1", HostUpdate{Build: &build, HostgroupID: &group})
	require.NoError(t, err)
	assert.True(t, host.Build)
}

func TestClient_ListHostgroups(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/hostgroups", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "name ~ fleet-%", q.Get("search"))
		jsonResponse(w, http.StatusOK, pagedResponse[Hostgroup]{
			Total: 2, Page: 1, PerPage: 999,
			Results: []Hostgroup{
				{ID: 1, Name: "fleet-web", OperatingSystemID: 11},
				{ID: 2, Name: "fleet-db", OperatingSystemID: 12},
			},
		})
	})

	groups, err := ts.client(t).ListHostgroups(context.Background(), 0, "fleet-%")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "fleet-db", groups[1].Name)
	assert.Equal(t, 12, groups[1].OperatingSystemID)
}

func TestClient_UpdateReason(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/update_reserved_reason", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "( name=web1 )", q.Get("query"))
		assert.Equal(t, "bisect", q.Get("reason"))
		jsonResponse(w, http.StatusOK, []Host{{ID: 1, Name: "web1"}})
	})

	hosts, err := ts.client(t).UpdateReason(context.Background(), HostsQuery("web1"), "bisect")
	require.NoError(t, err)
	assert.Equal(t, []string{"web1"}, Names(hosts))
}

func TestClient_Listings(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/show_reserved", func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("query"), "an empty query is not sent")
		jsonResponse(w, http.StatusOK, []Host{{ID: 1, Name: "web1"}})
	})
	ts.handleFunc("/api/show_available", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "hostgroup=fleet-web", q.Get("query"))
		assert.Equal(t, "2", q.Get("amount"))
		jsonResponse(w, http.StatusOK, []Host{{ID: 2, Name: "web2"}, {ID: 3, Name: "web3"}})
	})

	c := ts.client(t)
	reserved, err := c.ListReserved(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"web1"}, Names(reserved))

	available, err := c.ListAvailable(context.Background(), "hostgroup=fleet-web", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"web2", "web3"}, Names(available))
}

func TestClient_ServerErrorIsNotTransient(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := ts.client(t).Ping(context.Background())
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_ConnectionRefusedIsTransient(t *testing.T) {
	ts := newTestServer(t)
	c := ts.client(t)
	ts.server.Close()

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.True(t, IsTransient(err))
}

func TestClient_TimeoutIsTransient(t *testing.T) {
	ts := newTestServer(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	ts.handleFunc("/api/status", func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	err := ts.client(t, WithTimeout(50*time.Millisecond)).Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsTransient(err))
}

func TestClient_CancelledContext(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, statusResponse{Status: "ok"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ts.client(t).Ping(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTransient(err))
}

func TestClient_RateLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.handleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		jsonResponse(w, http.StatusOK, statusResponse{Status: "ok"})
	})

	c := ts.client(t, WithRateLimit(20))
	start := time.Now()
	for range 3 {
		require.NoError(t, c.Ping(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
