package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientUploadSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/documents", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Cells", r.FormValue("title"))
		assert.Equal(t, "Biology", r.FormValue("subject"))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "cells.txt", header.Filename)
		assert.Equal(t, "mitosis divides cells", string(data))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"documentId":"d1","chunksProcessed":1,"totalChunks":1}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cells.txt")
	require.NoError(t, os.WriteFile(path, []byte("mitosis divides cells"), 0o644))

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, c.Upload(t.Context(), path, UploadMeta{Title: "Cells", Subject: "Biology"}, &out))
	assert.Equal(t, "d1", out["documentId"])
}

func TestClientDecodesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "QuizNotFound", "message": "quiz not found: q1"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)
	err = c.Get(t.Context(), "/quizzes/q1", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "QuizNotFound", apiErr.Reason)
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)
	err = c.Post(t.Context(), "/search", map[string]string{"query": "x"}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Bad Gateway", apiErr.Reason)
	assert.Equal(t, "upstream down", apiErr.Message)
}

func TestChatCommandPrintsConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "What is osmosis?", req["message"])
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"conversationId": "c1", "response": "Water moving across a membrane.", "isNewConversation": true,
		})
	}))
	defer srv.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--server", srv.URL, "chat", "What is osmosis?"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "conversation: c1\n\nWater moving across a membrane.\n", out.String())
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url", time.Second)
	assert.Error(t, err)
}
