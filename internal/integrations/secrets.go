package integrations

import (
	"encoding/json"

	"github.com/releaselayer/backend/internal/models"
)

// Mask replaces secret config values in API responses. Sending it back on update keeps the
// stored value.
const Mask = "********"

var secretKeys = []string{"token", "secret", "webhookUrl"}

// Redacted returns a copy of in whose config secrets are masked.
func Redacted(in models.Integration) models.Integration {
	var cfg map[string]any
	if err := json.Unmarshal(in.Config, &cfg); err != nil {
		in.Config = json.RawMessage(`{}`)
		return in
	}
	for _, k := range secretKeys {
		if s, ok := cfg[k].(string); ok && s != "" {
			cfg[k] = Mask
		}
	}
	out, err := json.Marshal(cfg)
	if err != nil {
		in.Config = json.RawMessage(`{}`)
		return in
	}
	in.Config = out
	return in
}

// RedactedList masks every integration of list.
func RedactedList(list []models.Integration) []models.Integration {
	out := make([]models.Integration, 0, len(list))
	for _, in := range list {
		out = append(out, Redacted(in))
	}
	return out
}

// withStoredSecrets puts stored secret values back where the update body echoes Mask.
// Bodies that are not objects are returned untouched for the validator to reject.
func withStoredSecrets(raw []byte, stored json.RawMessage) []byte {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil || body["config"] == nil {
		return raw
	}
	var cfg, prev map[string]any
	if err := json.Unmarshal(body["config"], &cfg); err != nil || cfg == nil {
		return raw
	}
	_ = json.Unmarshal(stored, &prev)
	for _, k := range secretKeys {
		if cfg[k] != Mask {
			continue
		}
		if v, ok := prev[k]; ok {
			cfg[k] = v
		} else {
			delete(cfg, k)
		}
	}
	merged, err := json.Marshal(cfg)
	if err != nil {
		return raw
	}
	body["config"] = merged
	out, err := json.Marshal(body)
	if err != nil {
		return raw
	}
	return out
}
