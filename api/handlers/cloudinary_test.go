package handlers_test

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastecollect/waste-dispatch-api/api/handlers"
)

func TestCloudinaryHandler_GenerateSignature(t *testing.T) {
	h := newHarness(t)

	rr := h.do(t, http.MethodPost, "/api/v1/proofs/upload-signature", asUser(), nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var sig handlers.UploadSignature
	decode(t, rr, &sig)
	assert.Equal(t, "proofs", sig.UploadPreset)
	sum := sha1.Sum([]byte("timestamp=" + sig.Timestamp + "&upload_preset=proofs" + "cloudinary-secret"))
	assert.Equal(t, hex.EncodeToString(sum[:]), sig.Signature)
}

func TestCloudinaryHandler_NotConfigured(t *testing.T) {
	h := newHarness(t)
	h.app.Config.CloudinaryAPISecret = ""
	h.app.Router = h.app.New()

	rr := h.do(t, http.MethodPost, "/api/v1/proofs/upload-signature", asUser(), nil)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
