package main

import (
	"testing"

	"github.com/rathunderbird-creator/romdoul1-sub000/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigRejectsOversizedDeleteBatch(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", DeleteBatchSize: 501})
	if err == nil {
		t.Fatalf("expected delete batch above the backend limit to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", DeleteBatchSize: 100})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}
