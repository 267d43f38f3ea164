package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nurbekov/courtside/matchmaking"
	"github.com/nurbekov/courtside/services"
)

func TestMapServiceErrorToHTTP(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"party not found", services.ErrPartyNotFound, http.StatusNotFound},
		{"no active session", services.ErrNoActiveSession, http.StatusNotFound},
		{"email taken", services.ErrAuthEmailTaken, http.StatusConflict},
		{"court occupied", matchmaking.ErrCourtOccupied, http.StatusConflict},
		{"not enough players", matchmaking.ErrNotEnoughPlayers, http.StatusBadRequest},
		{"invalid algorithm", matchmaking.ErrInvalidAlgorithm, http.StatusBadRequest},
		{"confirmation required", services.ErrConfirmationRequired, http.StatusBadRequest},
		{"bad credentials", services.ErrAuthInvalidCredentials, http.StatusUnauthorized},
		{"host only", services.ErrHostOnly, http.StatusForbidden},
		{"corrupted session", services.ErrSessionCorrupted, http.StatusConflict},
		{"unknown error", errors.New("database on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/test", nil)

			mapServiceErrorToHTTP(rec, req, tc.err)
			require.Equal(t, tc.want, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Contains(t, body, "error")
		})
	}
}

func TestMapServiceErrorToHTTPWrappedError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", nil)

	wrapped := errors.Join(errors.New("context"), matchmaking.ErrPlayerNotFound)
	mapServiceErrorToHTTP(rec, req, wrapped)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadJSONRejectsBadBodies(t *testing.T) {
	read := func(body string) error {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
		var dst struct {
			Name string `json:"name"`
		}
		return readJSON(rec, req, &dst)
	}

	require.EqualError(t, read(""), "body must not be empty")
	require.EqualError(t, read(`{"name":"a"}{"name":"b"}`), "body must only contain a single JSON value")
	require.EqualError(t, read(`{"surprise":true}`), `body contains unknown key "surprise"`)
	require.NoError(t, read(`{"name":"a"}`))
}
