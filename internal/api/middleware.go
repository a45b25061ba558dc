package api

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is bumped when the envelope structure changes, so
// dashboard clients can detect incompatible servers.
const EnvelopeVersion = 1

// APIEnvelope is the uniform wrapper around every JSON response.
type APIEnvelope struct { //nolint:revive // API prefix is intentional for clarity
	Version int    `json:"v" doc:"Envelope version"`
	Success bool   `json:"success" doc:"Whether the request succeeded"`
	Data    any    `json:"data,omitempty" doc:"Response payload"`
	Error   string `json:"error,omitempty" doc:"Error message"`
	Code    string `json:"code,omitempty" doc:"Machine-readable error code"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// EnvelopeTransformer wraps every response body in an APIEnvelope.
// Registered as a huma transformer so handlers return plain bodies.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if strings.HasPrefix(status, "2") {
		return APIEnvelope{
			Version: EnvelopeVersion,
			Success: true,
			Data:    v,
		}, nil
	}

	envelope := APIEnvelope{Version: EnvelopeVersion}

	switch err := v.(type) {
	case *APIError:
		envelope.Error = err.Message
		envelope.Code = err.Code
		envelope.Details = err.Details
	case error:
		envelope.Error = err.Error()
	default:
		envelope.Data = v
	}

	return envelope, nil
}
