package messenger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/stepauth/internal/verify/messenger"
)

func TestBaleSender_Send(t *testing.T) {
	t.Parallel()

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botsecret/sendMessage" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"not found"}`))
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	t.Cleanup(srv.Close)

	s := messenger.NewBaleSender(srv.URL+"/", "secret")
	require.NoError(t, s.Send(context.Background(), "801131447", "code: 123456"))
	require.Equal(t, "801131447", got["chat_id"])
	require.Equal(t, "code: 123456", got["text"])
}

func TestBaleSender_Errors(t *testing.T) {
	t.Parallel()

	t.Run("not ok", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"chat not found"}`))
		}))
		t.Cleanup(srv.Close)

		err := messenger.NewBaleSender(srv.URL, "secret").Send(context.Background(), "1", "x")
		require.ErrorIs(t, err, messenger.ErrDelivery)
		require.Contains(t, err.Error(), "chat not found")
	})

	t.Run("not json", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		}))
		t.Cleanup(srv.Close)

		err := messenger.NewBaleSender(srv.URL, "secret").Send(context.Background(), "1", "x")
		require.ErrorIs(t, err, messenger.ErrDelivery)
		require.Contains(t, err.Error(), "502")
	})

	t.Run("unreachable hides token", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		err := messenger.NewBaleSender(url, "supersecrettoken").Send(context.Background(), "1", "x")
		require.ErrorIs(t, err, messenger.ErrDelivery)
		require.NotContains(t, err.Error(), "supersecrettoken")
	})
}

func TestLogSender(t *testing.T) {
	t.Parallel()
	require.NoError(t, messenger.NewLogSender(nil).Send(context.Background(), "1", "hello"))
}

func TestBaleSender_Check(t *testing.T) {
	t.Parallel()
	require.Error(t, messenger.NewBaleSender("", "").Check(context.Background()))
	require.NoError(t, messenger.NewBaleSender("", "token").Check(context.Background()))
	require.Equal(t, messenger.DefaultBaleAPIURL, messenger.NewBaleSender("", "token").BaseURL)
}
