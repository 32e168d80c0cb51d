package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestCreateDirectCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/calls/direct", r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.NotEmpty(t, r.Header.Get("X-Request-Id"))

		var body directCallRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, int64(42), body.ToUserID)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id": "call-1", "type": "direct", "initiator_user_id": 7, "status": "pending",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1")
	rec, err := c.CreateDirectCall(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, "call-1", rec.ID)
	require.Equal(t, "direct", rec.Type)
	require.Equal(t, int64(7), rec.InitiatorUserID)
}

func TestJoinCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/calls/call-9/join", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"url": "wss://media.example", "token": "media-tok",
			"room_name": "call-9-room", "identity": "user-7",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1")
	info, err := c.JoinCall(context.Background(), "call-9")
	require.NoError(t, err)
	require.Equal(t, "wss://media.example", info.URL)
	require.Equal(t, "media-tok", info.Token)
	require.Equal(t, "call-9-room", info.RoomName)
	require.Equal(t, "user-7", info.Identity)
}

func TestEndCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/calls/call-9/end", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1")
	require.NoError(t, c.EndCall(context.Background(), "call-9"))
	require.True(t, called)
}

func TestErrorBodyDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "call already active"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok-1")
	_, err := c.CreateRoomCall(context.Background(), 3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "call already active")
	require.Contains(t, err.Error(), "409")
}

func TestIdentityFromToken(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  float64(7),
		"username": "alice",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	ident, err := IdentityFromToken(tok)
	require.NoError(t, err)
	require.Equal(t, int64(7), ident.UserID)
	require.Equal(t, "alice", ident.Username)
}

func TestIdentityFromTokenSubFallback(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "12",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	ident, err := IdentityFromToken(tok)
	require.NoError(t, err)
	require.Equal(t, int64(12), ident.UserID)
}

func TestIdentityFromTokenRejectsGarbage(t *testing.T) {
	_, err := IdentityFromToken("not-a-jwt")
	require.Error(t, err)
}
