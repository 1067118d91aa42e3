package mockjobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, b *Backend) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(b.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, rawURL string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func submit(t *testing.T, srv *httptest.Server, name string, form url.Values) (int, map[string]any) {
	t.Helper()
	resp, err := http.PostForm(srv.URL+"/reports/"+name+"/start", form)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestBackend_SubmitThenPoll(t *testing.T) {
	b := New(PortalCodes)
	b.Register("hosts", Report{Steps: 2, Build: func(criteria map[string]any) (any, error) {
		return criteria, nil
	}})
	srv := newTestServer(t, b)

	code, body := submit(t, srv, "hosts", url.Values{
		"criteria":  {`{"limit":3}`},
		"widget_id": {"w1"},
	})
	require.Equal(t, http.StatusOK, code)
	jobURL, _ := body["joburl"].(string)
	require.True(t, strings.HasPrefix(jobURL, "/reports/jobs/"), jobURL)
	require.Equal(t, 1, b.Submits())

	_, body = getJSON(t, srv.URL+jobURL)
	require.EqualValues(t, 1, body["status"])
	require.EqualValues(t, 33, body["progress"])

	_, body = getJSON(t, srv.URL+jobURL)
	require.EqualValues(t, 1, body["status"])
	require.EqualValues(t, 66, body["progress"])

	_, body = getJSON(t, srv.URL+jobURL)
	require.EqualValues(t, 3, body["status"])
	require.Equal(t, map[string]any{"limit": float64(3), "widget_id": "w1"}, body["data"])
}

func TestBackend_ReportError(t *testing.T) {
	b := New(LegacyCodes)
	b.Register("broken", Report{Build: func(map[string]any) (any, error) {
		return nil, errors.New("no data")
	}})
	srv := newTestServer(t, b)

	_, body := submit(t, srv, "broken", nil)
	_, body = getJSON(t, srv.URL+body["joburl"].(string))
	require.EqualValues(t, 3, body["status"])
	require.Equal(t, "no data", body["message"])
}

func TestBackend_SubmitErrors(t *testing.T) {
	b := New(PortalCodes)
	b.Register("hosts", Report{})
	srv := newTestServer(t, b)

	code, _ := submit(t, srv, "missing", nil)
	require.Equal(t, http.StatusNotFound, code)

	code, body := submit(t, srv, "hosts", url.Values{"criteria": {`[1,2]`}})
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body["error"], "criteria must be a JSON object")

	code, _ = getJSON(t, srv.URL+"/reports/jobs/nope")
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, 0, b.Submits())
}

func TestBackend_DirectPoll(t *testing.T) {
	b := New(LegacyCodes)
	b.Register("traffic", Report{Steps: 1, Build: func(criteria map[string]any) (any, error) {
		return criteria["view"], nil
	}})
	srv := newTestServer(t, b)

	_, body := getJSON(t, srv.URL+"/reports/traffic/data?ts=100&view=top")
	require.EqualValues(t, 1, body["status"])
	require.EqualValues(t, 50, body["progress"])

	// a new cursor starts a new job
	_, body = getJSON(t, srv.URL+"/reports/traffic/data?ts=200&view=top")
	require.EqualValues(t, 1, body["status"])

	_, body = getJSON(t, srv.URL+"/reports/traffic/data?ts=100&view=top")
	require.EqualValues(t, 2, body["status"])
	require.Equal(t, "top", body["data"])

	code, _ := getJSON(t, srv.URL+"/reports/traffic/data")
	require.Equal(t, http.StatusBadRequest, code)
}

func TestBackend_NilBuildCompletesWithNull(t *testing.T) {
	b := New(PortalCodes)
	b.Register("empty", Report{})
	srv := newTestServer(t, b)

	_, body := getJSON(t, srv.URL+"/reports/empty/data?ts=1")
	require.EqualValues(t, 3, body["status"])
	require.Contains(t, body, "data")
	require.Nil(t, body["data"])
}

func TestBackend_CORS(t *testing.T) {
	b := New(PortalCodes, WithCORS("http://dash.local"))
	b.Register("empty", Report{})
	srv := newTestServer(t, b)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/reports/empty/data?ts=1", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dash.local")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "http://dash.local", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestBackend_Demo(t *testing.T) {
	b := New(PortalCodes)
	b.RegisterDemo()
	srv := newTestServer(t, b)

	for _, name := range []string{"traffic", "hosts", "protocols", "sites", "summary"} {
		t.Run(name, func(t *testing.T) {
			_, body := submit(t, srv, name, url.Values{"criteria": {`{"limit":2}`}, "widget_id": {name}})
			jobURL := body["joburl"].(string)
			for i := 0; i < 10; i++ {
				_, body = getJSON(t, srv.URL+jobURL)
				if body["status"] != float64(1) {
					break
				}
			}
			require.EqualValues(t, 3, body["status"])
			require.NotNil(t, body["data"])
		})
	}

	_, body := submit(t, srv, "broken", nil)
	jobURL := body["joburl"].(string)
	for i := 0; i < 10 && body["status"] != float64(4); i++ {
		_, body = getJSON(t, srv.URL+jobURL)
	}
	require.Equal(t, "report database unavailable", body["message"])
}
