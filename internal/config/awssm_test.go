package config

import (
	"testing"
)

func TestResolveValue_AWSSM_NoCredentials(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_CONFIG_FILE", "/nonexistent")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/nonexistent")

	_, err := ResolveValue("${AWS_SM:nonexistent-secret}")
	if err == nil {
		t.Error("expected error when AWS credentials are not configured")
	}
}

func TestSecretJSONField(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		key     string
		want    string
		wantErr bool
	}{
		{"present", `{"uri":"mongodb://x","user":"u"}`, "uri", "mongodb://x", false},
		{"missing key", `{"user":"u"}`, "uri", "", true},
		{"not json", `plain`, "uri", "", true},
		{"not a string", `{"port":27017}`, "port", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := secretJSONField(tt.secret, "datachat", tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
