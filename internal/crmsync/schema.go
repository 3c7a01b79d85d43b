package crmsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/qri-io/jsonschema"
)

// upsertSchema describes the inbound CRM record. Optional fields accept null so the
// CRM can clear them.
var upsertSchema = []byte(`{
  "type": "object",
  "required": ["ServiceAppointmentId", "CustomerName", "InstallationAddress"],
  "properties": {
    "ServiceAppointmentId": {"type": "string", "minLength": 1},
    "CustomerName":         {"type": "string", "minLength": 1},
    "InstallationAddress":  {"type": "string", "minLength": 1},
    "CustomerSurname":      {"type": ["string", "null"]},
    "CustomerCF":           {"type": ["string", "null"]},
    "CustomerPhone":        {"type": ["string", "null"]},
    "CustomerEmail":        {"type": ["string", "null"]},
    "CustomerAddress":      {"type": ["string", "null"]},
    "InstallationType":     {"type": ["string", "null"]},
    "TechnicalNotes":       {"type": ["string", "null"]},
    "InstallerNotes":       {"type": ["string", "null"]},
    "ImagesToView":         {"type": ["array", "null"], "items": {"type": "string"}},
    "CompletionLink":       {"type": ["string", "null"]},
    "PdfUrl":               {"type": ["string", "null"]},
    "DurationMinutes":      {"type": ["integer", "null"], "minimum": 1, "maximum": 960},
    "ScheduledStart":       {"type": ["string", "null"]},
    "ScheduledEnd":         {"type": ["string", "null"]}
  }
}`)

var deleteSchema = []byte(`{
  "type": "object",
  "required": ["ServiceAppointmentId"],
  "properties": {
    "ServiceAppointmentId": {"type": "string", "minLength": 1}
  }
}`)

func mustSchema(raw []byte) *jsonschema.Schema {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(raw, rs); err != nil {
		panic(fmt.Sprintf("crmsync: bad schema: %v", err))
	}
	return rs
}

var (
	upsertValidator = mustSchema(upsertSchema)
	deleteValidator = mustSchema(deleteSchema)
)

func validate(ctx context.Context, rs *jsonschema.Schema, body []byte) error {
	if !json.Valid(body) {
		return errs.Validation("invalid JSON body")
	}
	verrs, err := rs.ValidateBytes(ctx, body)
	if err != nil {
		return errs.Validation("invalid payload: %v", err)
	}
	if len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, v := range verrs {
			msgs = append(msgs, strings.TrimSpace(v.PropertyPath+" "+v.Message))
		}
		return errs.Validation("invalid payload: %s", strings.Join(msgs, "; "))
	}
	return nil
}
