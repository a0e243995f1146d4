package flow

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ribera-digital/bankline/internal/genai"
)

// Prompt key to flow column mappings. The model speaks the Spanish keys the
// contexts define; the store speaks column names.
var (
	quoteKeys = map[string]string{
		"Marca":  "brand",
		"Modelo": "model",
		"Año":    "year",
		"Precio": "price",
		"Plazo":  "term",
		"CP":     "postal_code",
	}
	additionalCardKeys = map[string]string{
		"Name":     "holder_name",
		"Relation": "relation",
		"Limite":   "credit_limit",
		"RFC":      "tax_id",
	}
	blockedCardKeys = map[string]string{
		"Number": "card_number",
		"Tipo":   "card_type",
	}
	newAccountKeys = map[string]string{
		"Nuevo":         "is_new",
		"Tipo":          "account_type",
		"Profesion":     "profession",
		"Transacciones": "transactions",
		"Monto":         "monthly_amount",
		"PEP":           "pep",
	}
)

// FieldUpdate is a parsed structured model response: the field values it
// carried, keyed by column name, plus the message to relay to the customer.
type FieldUpdate struct {
	Fields  map[string]string
	Message string
}

// ParseFieldUpdate decodes a model response against a key mapping. Returns
// ok=false when the response is not a JSON object or carries none of the
// expected keys; callers then fall back to relaying the raw text. Empty and
// null values are dropped so stored fields only ever accumulate.
func ParseFieldUpdate(raw string, keys map[string]string) (FieldUpdate, bool) {
	clean := genai.CleanResponse(raw)
	var obj map[string]any
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return FieldUpdate{}, false
	}

	update := FieldUpdate{Fields: make(map[string]string)}
	for key, col := range keys {
		if val, ok := stringifyValue(obj[key]); ok {
			update.Fields[col] = val
		}
	}
	update.Message, _ = stringifyValue(obj["Mensaje"])

	if len(update.Fields) == 0 && update.Message == "" {
		return FieldUpdate{}, false
	}
	return update, true
}

// stringifyValue normalizes a decoded JSON value to a non-empty string.
// Unknown types and empty values report ok=false.
func stringifyValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "undefined") {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// parseAction decodes an {"action", "message"} response.
func parseAction(raw string) (action, message string, ok bool) {
	clean := genai.CleanResponse(raw)
	var obj struct {
		Action  string `json:"action"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return "", "", false
	}
	if obj.Action == "" {
		return "", "", false
	}
	return obj.Action, obj.Message, true
}

// parseAdvance reports whether the response is the stage confirmation token.
func parseAdvance(raw string) bool {
	clean := genai.CleanResponse(raw)
	var obj struct {
		Advance any `json:"advance"`
	}
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return false
	}
	switch v := obj.Advance.(type) {
	case string:
		return strings.EqualFold(v, "true")
	case bool:
		return v
	default:
		return false
	}
}

// parseStringField extracts a single named string from a JSON response.
func parseStringField(raw, key string) (string, bool) {
	clean := genai.CleanResponse(raw)
	var obj map[string]any
	if err := json.Unmarshal([]byte(clean), &obj); err != nil {
		return "", false
	}
	return stringifyValue(obj[key])
}
