package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestClient(t *testing.T, h http.Handler, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL, Token: token, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: ""})
	require.Error(t, err)
	_, err = New(Options{BaseURL: "ftp://example.com"})
	require.Error(t, err)
}

func TestNew_AppendsAPIPrefixOnce(t *testing.T) {
	c, err := New(Options{BaseURL: "https://example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api/company", c.endpoint("company"))

	c, err = New(Options{BaseURL: "https://example.com/api"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api/company/c1/user", c.endpoint("company", "c1", "user"))
}

func TestMembers_SendsBearerAndRequestID(t *testing.T) {
	var gotAuth, gotReqID, gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-Id")
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `["u1","u3"]`)
	}), "tok-123")

	ids, err := c.Members(context.Background(), "c1", "project-allocation", "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u3"}, ids)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.NotEmpty(t, gotReqID)
	assert.Equal(t, "/api/company/c1/project-allocation/p1", gotPath)
}

func TestMembers_NullBodyIsEmptySet(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `null`)
	}), "tok")
	ids, err := c.Members(context.Background(), "c1", "user-allocation", "u1")
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestReplaceMembers_SendsFullSetUnderField(t *testing.T) {
	var method string
	var body map[string][]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}), "tok")

	err := c.ReplaceMembers(context.Background(), "c1", "project-activity", "p1", "activityIds", []string{"a1", "a2"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, method)
	if diff := cmp.Diff(map[string][]string{"activityIds": {"a1", "a2"}}, body); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestReplaceMembers_NilIDsSendEmptyArray(t *testing.T) {
	var raw []byte
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
	}), "tok")
	require.NoError(t, c.ReplaceMembers(context.Background(), "c1", "user-allocation", "u1", "projectIds", nil))
	assert.JSONEq(t, `{"projectIds":[]}`, string(raw))
}

func TestErrorBodyMessageIsSurfaced(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"Project is not active"}`)
	}), "tok")

	_, err := c.Members(context.Background(), "c1", "project-allocation", "p1")
	require.Error(t, err)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Project is not active", Message(err))
}

func TestUnauthorizedIsSentinel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}), "")
	_, err := c.Companies(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, Message(err), "emctl login")
}

func TestLogin_PostsCredentialsWithoutBearer(t *testing.T) {
	var auth string
	var creds map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&creds)
		_, _ = io.WriteString(w, `{"token":"jwt","tokenType":"Bearer"}`)
	}), "")

	resp, err := c.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", resp.Token)
	assert.Empty(t, auth)
	assert.Equal(t, map[string]string{"username": "admin", "password": "secret"}, creds)
}

func TestTimeoutBecomesError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	c, err := New(Options{BaseURL: srv.URL, Token: "tok", Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Members(context.Background(), "c1", "project-allocation", "p1")
	close(release)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)

	srv.Close()
	if tr, ok := http.DefaultTransport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
}
