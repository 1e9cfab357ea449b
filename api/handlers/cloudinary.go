package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	cldapi "github.com/cloudinary/cloudinary-go/v2/api"

	"github.com/wastecollect/waste-dispatch-api/config"
)

// CloudinaryHandler signs direct uploads of collection proof photos
type CloudinaryHandler struct {
	APISecret    string
	UploadPreset string
}

// UploadSignature is what the client needs to upload one photo directly to Cloudinary
type UploadSignature struct {
	Timestamp    string `json:"timestamp"`
	Signature    string `json:"signature"`
	UploadPreset string `json:"uploadPreset,omitempty"`
}

// GenerateSignature signs the timestamp and upload preset with the account secret
func (c CloudinaryHandler) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorOr401(w, r); !ok {
		return
	}
	if c.APISecret == "" {
		config.ErrorStatus("proof uploads are not configured", http.StatusServiceUnavailable, w, errors.New("cloudinary api secret is not set"))
		return
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	params := url.Values{"timestamp": {timestamp}}
	if c.UploadPreset != "" {
		params.Set("upload_preset", c.UploadPreset)
	}
	signature, err := cldapi.SignParameters(params, c.APISecret)
	if err != nil {
		config.ErrorStatus("failed to sign upload", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadSignature{
		Timestamp:    timestamp,
		Signature:    signature,
		UploadPreset: c.UploadPreset,
	})
}
