package commands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sopdesk/internal/store/bolt"
	"github.com/wolfeidau/sopdesk/internal/store/memory"
)

func TestStoreFlagsValidate(t *testing.T) {
	tests := []struct {
		name    string
		flags   StoreFlags
		wantErr string
	}{
		{name: "memory", flags: StoreFlags{Type: "memory"}},
		{name: "bolt", flags: StoreFlags{Type: "bolt", BoltPath: "x.db"}},
		{name: "bolt without path", flags: StoreFlags{Type: "bolt"}, wantErr: "bolt database path is required"},
		{name: "postgres without conn string", flags: StoreFlags{Type: "postgres"}, wantErr: "connection string is required"},
		{
			name: "postgres pool bounds",
			flags: StoreFlags{Type: "postgres", Postgres: PostgresStoreFlags{
				ConnString: "postgres://localhost/sopdesk", MinConns: 10, MaxConns: 2,
			}},
			wantErr: "cannot exceed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.flags.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	docs, err := openStore(ctx, &StoreFlags{Type: "memory"}, false)
	require.NoError(t, err)
	require.IsType(t, &memory.DocumentStore{}, docs)
	require.NoError(t, docs.Close())

	docs, err = openStore(ctx, &StoreFlags{Type: "bolt", BoltPath: filepath.Join(t.TempDir(), "s.db")}, false)
	require.NoError(t, err)
	require.IsType(t, &bolt.DocumentStore{}, docs)
	require.NoError(t, docs.Close())
}

func TestTokenFlags(t *testing.T) {
	flags := TokenFlags{SecretKey: "short", TTL: time.Hour}
	_, err := flags.tokenService()
	require.ErrorContains(t, err, "at least 32 bytes")

	flags.SecretKey = strings.Repeat("s", 32)
	flags.CacheSize = 8
	flags.CacheTTL = time.Minute

	tokens, err := flags.tokenService()
	require.NoError(t, err)
	require.Equal(t, time.Hour, tokens.TTL())

	token, err := tokens.Issue("001.0001.000")
	require.NoError(t, err)

	session, err := tokens.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "001.0001.000", session.Registration)
}

func TestWithCORS(t *testing.T) {
	h := withCORS([]string{"http://localhost:3000"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/me", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
}

func TestConfigureHTTPServer(t *testing.T) {
	srv := configureHTTPServer(":0", http.NotFoundHandler())
	require.Equal(t, time.Second, srv.ReadHeaderTimeout)
	require.Equal(t, 8*1024, srv.MaxHeaderBytes)
}
