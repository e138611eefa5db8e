package files

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckRef(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/receipts/ok.pdf" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	require.NoError(t, client.CheckRef(context.Background(), srv.URL+"/receipts/ok.pdf"))
	require.Error(t, client.CheckRef(context.Background(), srv.URL+"/receipts/missing.pdf"))
}

func TestCheckRefMalformed(t *testing.T) {
	client := NewClient("http://files.internal")
	require.Error(t, client.CheckRef(context.Background(), "not a url"))
	require.Error(t, client.CheckRef(context.Background(), "/relative/path.pdf"))
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL).Ping(context.Background()))
}
