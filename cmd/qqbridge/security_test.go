package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return "sha1=" + hex.EncodeToString(mac.Sum(nil))
}

func signedRequest(body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	return req
}

func TestVerifySignatureValid(t *testing.T) {
	body := []byte(`{"type": "message"}`)
	req := signedRequest(body, signBody(body, "secret"))

	got, err := verifySignature(req, "secret", "X-Signature")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	// the body must remain readable by later handlers
	reread, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, reread)
}

func TestVerifySignatureEmptySecretSkipsCheck(t *testing.T) {
	body := []byte(`{"type": "message"}`)
	req := signedRequest(body, "")

	got, err := verifySignature(req, "", "X-Signature")
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestVerifySignatureMissingHeader(t *testing.T) {
	req := signedRequest([]byte(`{}`), "")
	_, err := verifySignature(req, "secret", "X-Signature")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing signature header")
}

func TestVerifySignatureWrongScheme(t *testing.T) {
	req := signedRequest([]byte(`{}`), "sha256=deadbeef")
	_, err := verifySignature(req, "secret", "X-Signature")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signature format")
}

func TestVerifySignatureMismatch(t *testing.T) {
	body := []byte(`{"type": "message"}`)
	req := signedRequest(body, signBody(body, "other-secret"))

	_, err := verifySignature(req, "secret", "X-Signature")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestVerifySignatureTamperedBody(t *testing.T) {
	original := []byte(`{"amount": 1}`)
	tampered := []byte(`{"amount": 9}`)
	req := signedRequest(tampered, signBody(original, "secret"))

	_, err := verifySignature(req, "secret", "X-Signature")
	require.Error(t, err)
}
