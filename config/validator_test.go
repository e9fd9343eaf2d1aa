package config

import (
	"strings"
	"testing"
)

func TestSchemaValidation(t *testing.T) {
	validator, err := NewSchemaValidator()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		config    map[string]interface{}
		wantError bool
		errorMsg  string
	}{
		{
			name: "valid config",
			config: map[string]interface{}{
				"watch": true,
				"channels": map[string]interface{}{
					"css": "**/*.css",
					"js":  []interface{}{"**/*.js", "**/*.mjs"},
				},
				"pipelines": []interface{}{
					map[string]interface{}{"name": "scripts", "action": "copy", "channel": "js", "out": "dist"},
				},
			},
		},
		{
			name:   "empty config",
			config: map[string]interface{}{},
		},
		{
			name: "extensions are allowed",
			config: map[string]interface{}{
				"logging": map[string]interface{}{"level": "debug"},
			},
		},
		{
			name: "reserved channel name",
			config: map[string]interface{}{
				"channels": map[string]interface{}{"@all": "*"},
			},
			wantError: true,
			errorMsg:  "/channels",
		},
		{
			name: "channel pattern of wrong type",
			config: map[string]interface{}{
				"channels": map[string]interface{}{"js": 3},
			},
			wantError: true,
			errorMsg:  "/channels/js",
		},
		{
			name: "pipeline without action",
			config: map[string]interface{}{
				"pipelines": []interface{}{map[string]interface{}{"name": "x"}},
			},
			wantError: true,
			errorMsg:  "action",
		},
		{
			name: "unknown pipeline action",
			config: map[string]interface{}{
				"pipelines": []interface{}{map[string]interface{}{"name": "x", "action": "zip"}},
			},
			wantError: true,
			errorMsg:  "/pipelines/0/action",
		},
		{
			name: "negative debounce",
			config: map[string]interface{}{
				"debounce_ms": -10,
			},
			wantError: true,
			errorMsg:  "/debounce_ms",
		},
		{
			name: "wrong type for watch",
			config: map[string]interface{}{
				"watch": "yes",
			},
			wantError: true,
			errorMsg:  "/watch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.config)
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"Basin Configuration"`, `"channels"`, `"pipelines"`, `"debounce_ms"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("schema missing %s", want)
		}
	}
	if strings.Contains(string(data), `"Extensions"`) || strings.Contains(string(data), `"Dir"`) {
		t.Error("schema must not expose internal fields")
	}
}
