package objectstore

import "testing"

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Endpoint:          "localhost:9000",
		AccessKey:         "a",
		SecretKey:         "b",
		Region:            "us-east-1",
		UseSSL:            false,
		BucketDefinitions: "flow-definitions",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}

	invalid := valid
	invalid.Endpoint = "http://localhost:9000"
	if err := invalid.Validate(); err == nil {
		t.Fatalf("Validate() expected error for scheme in endpoint")
	}

	invalid = valid
	invalid.BucketDefinitions = " "
	if err := invalid.Validate(); err == nil {
		t.Fatalf("Validate() expected error for empty bucket")
	}
}

func TestConfigFromEnvDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("TRIALFLOW_MINIO_ENDPOINT", "")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Enabled() {
		t.Fatalf("expected archiving disabled without endpoint")
	}
}

func TestConfigFromEnvRequiresCredentials(t *testing.T) {
	t.Setenv("TRIALFLOW_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("TRIALFLOW_MINIO_ACCESS_KEY", "")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error without access key")
	}

	t.Setenv("TRIALFLOW_MINIO_ACCESS_KEY", "trialflow")
	t.Setenv("TRIALFLOW_MINIO_SECRET_KEY", "secret")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.BucketDefinitions != "flow-definitions" {
		t.Fatalf("BucketDefinitions=%q, want flow-definitions", cfg.BucketDefinitions)
	}
}
