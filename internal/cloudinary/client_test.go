package cloudinary

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	c := New("demo", "key", "secret", "")
	got := c.sign(map[string]string{"timestamp": "100", "api_key": "key", "folder": "f", "file": "data:..."})

	want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=f&timestamp=100secret")))
	assert.Equal(t, want, got)
}

func TestUploadProof(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/demo/image/upload", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "data:image/png;base64,AAAA", r.FormValue("file"))
		assert.Equal(t, "payment-9", r.FormValue("public_id"))
		assert.Equal(t, "collegepay/proofs", r.FormValue("folder"))
		assert.Equal(t, "1767225600", r.FormValue("timestamp"))
		assert.NotEmpty(t, r.FormValue("signature"))
		_, _ = w.Write([]byte(`{"public_id":"collegepay/proofs/payment-9","secure_url":"https://res.cloudinary.com/demo/payment-9.png","bytes":3}`))
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "collegepay/proofs")
	c.BaseURL = srv.URL
	c.now = func() time.Time { return time.Unix(1767225600, 0) }

	res, err := c.UploadProof(context.Background(), 9, "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/payment-9.png", res.SecureURL)
}

func TestUploadProof_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad/image/upload":
			http.Error(w, `{"error":{"message":"Invalid Signature"}}`, http.StatusUnauthorized)
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c := New("bad", "key", "secret", "")
	c.BaseURL = srv.URL
	_, err := c.UploadProof(context.Background(), 1, "data:image/png;base64,AAAA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	c = New("empty", "key", "secret", "")
	c.BaseURL = srv.URL
	_, err = c.UploadProof(context.Background(), 1, "data:image/png;base64,AAAA")
	assert.Error(t, err)
}
