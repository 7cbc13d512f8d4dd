package config

import (
	"strings"
	"testing"
)

type hostTestStruct struct {
	Host string `validate:"host"`
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"api.brilliox.io", true},
		{"-bad.example", false},
		{"has space", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			err := validate.Struct(hostTestStruct{Host: tt.host})
			if tt.expected && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tt.expected && err == nil {
				t.Errorf("expected invalid for host %q", tt.host)
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "server.port", Message: "must be at most 65535", Value: 99999},
		{Field: "log.level", Message: "must be one of [debug info warn error]", Value: "trace"},
	}

	msg := errs.Error()
	if !strings.Contains(msg, "server.port") || !strings.Contains(msg, "log.level") {
		t.Errorf("expected both fields in message, got %s", msg)
	}
	if ValidationErrors(nil).Error() != "no validation errors" {
		t.Error("unexpected message for empty errors")
	}
}

func TestFormatValidationError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Log.Format = "xml"

	err := ValidateWithDetails(cfg)
	details, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	messages := make(map[string]string)
	for _, d := range details {
		messages[d.Field] = d.Message
	}
	if messages["Config.Server.Port"] != "this field is required" {
		t.Errorf("unexpected port message: %q", messages["Config.Server.Port"])
	}
	if messages["Config.Log.Format"] != "must be one of [json text]" {
		t.Errorf("unexpected format message: %q", messages["Config.Log.Format"])
	}
}
