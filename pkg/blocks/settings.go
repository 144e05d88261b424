package blocks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukex/canvasblocks/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var settingsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"type": map[string]any{"type": "string"},
		"ioConnections": map[string]any{
			"type": "object",
			"additionalProperties": map[string]any{
				"type":     "object",
				"required": []any{"direction"},
				"properties": map[string]any{
					"direction": map[string]any{"type": "string"},
					"type":      map[string]any{"type": "string"},
				},
			},
		},
		"allowedVariables": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
}

// ParseSettings decodes the first settings block in text.
func ParseSettings(text string) (*models.WorkflowSettings, error) {
	payload, ok := Extract(text, SettingsTag)
	if !ok {
		return nil, ErrBlockNotFound
	}

	return DecodeSettings(payload)
}

// DecodeSettings decodes a settings block payload.
func DecodeSettings(payload string) (*models.WorkflowSettings, error) {
	if err := validateSchema(payload); err != nil {
		return nil, &ParseError{Tag: SettingsTag, Err: err}
	}

	var settings models.WorkflowSettings
	if err := json.Unmarshal([]byte(payload), &settings); err != nil {
		return nil, &ParseError{Tag: SettingsTag, Err: err}
	}

	if err := validate.Struct(settings); err != nil {
		return nil, &ParseError{Tag: SettingsTag, Err: err}
	}

	var raw struct {
		IOConnections json.RawMessage `json:"ioConnections"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err == nil {
		settings.PortOrder = objectKeys(raw.IOConnections)
	}

	return &settings, nil
}

// ParseConnectionPoint decodes the first connection-point block in text.
func ParseConnectionPoint(text string) (*models.ConnectionPoint, error) {
	payload, ok := Extract(text, ConnectionPointTag)
	if !ok {
		return nil, ErrBlockNotFound
	}

	var point models.ConnectionPoint
	if err := json.Unmarshal([]byte(payload), &point); err != nil {
		return nil, &ParseError{Tag: ConnectionPointTag, Err: err}
	}

	if err := validate.Struct(point); err != nil {
		return nil, &ParseError{Tag: ConnectionPointTag, Err: err}
	}

	return &point, nil
}

// ConnectionPointText renders the text of a connection-point node.
func ConnectionPointText(point models.ConnectionPoint) string {
	encoded, _ := json.MarshalIndent(point, "", "    ")

	return Fence(ConnectionPointTag, string(encoded))
}

// RewriteSettingsType replaces the type of the first settings block in text, keeping every
// other field and the rest of the text.
func RewriteSettingsType(text string, settingsType models.SettingsType) (string, error) {
	loc := pattern(SettingsTag).FindStringSubmatchIndex(text)
	if loc == nil {
		return "", ErrBlockNotFound
	}

	payload := text[loc[2]:loc[3]]

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return "", &ParseError{Tag: SettingsTag, Err: err}
	}

	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	encodedType, err := json.Marshal(settingsType)
	if err != nil {
		return "", err
	}

	fields["type"] = encodedType

	rewritten, err := json.MarshalIndent(fields, "", "\t")
	if err != nil {
		return "", fmt.Errorf("failed to encode settings: %w", err)
	}

	return text[:loc[2]] + string(rewritten) + "\n" + text[loc[3]:], nil
}

func validateSchema(payload string) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(settingsSchema), gojsonschema.NewStringLoader(payload))
	if err != nil {
		return err
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return fmt.Errorf("schema validation failed: %s", strings.Join(messages, "; "))
	}

	return nil
}

func objectKeys(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}

	var keys []string

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}

		key, ok := tok.(string)
		if !ok {
			return keys
		}

		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}

	return keys
}
