package handler

import (
	"strings"
	"time"

	dErrors "veritag/pkg/domain-errors"
)

const maxCodeLength = 64

// VerifyRequest is the HTTP request body for POST /verify.
type VerifyRequest struct {
	Code      string    `json:"code"`
	Location  string    `json:"location"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Validate checks the scan submission. Grammar validation stays with the
// verification service, which rejects a malformed code with malformed_code;
// this only bounds what cannot be a scan at all.
func (r *VerifyRequest) Validate() error {
	r.Code = strings.TrimSpace(r.Code)
	if r.Code == "" {
		return dErrors.New(dErrors.CodeBadRequest, "code is required")
	}
	if len(r.Code) > maxCodeLength {
		return dErrors.New(dErrors.CodeBadRequest, "code is too long")
	}
	r.Location = strings.TrimSpace(r.Location)
	return nil
}
