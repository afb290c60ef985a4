package config

import "testing"

func TestValidate(t *testing.T) {
	base := Config{
		Env:         "production",
		TokenSecret: "a-real-secret",
		TokenTTLMin: 60,
		BcryptCost:  10,
	}

	if err := base.Validate(); err != nil {
		t.Errorf("valid config error = %v", err)
	}

	noSecret := base
	noSecret.TokenSecret = ""
	if err := noSecret.Validate(); err == nil {
		t.Error("production without TOKEN_SECRET must not validate")
	}

	devSecret := base
	devSecret.TokenSecret = "dev-insecure-token-secret"
	if err := devSecret.Validate(); err == nil {
		t.Error("production with the dev fallback secret must not validate")
	}

	dev := base
	dev.Env = "development"
	dev.TokenSecret = ""
	if err := dev.Validate(); err != nil {
		t.Errorf("development without TOKEN_SECRET error = %v", err)
	}

	badTTL := base
	badTTL.TokenTTLMin = 0
	if err := badTTL.Validate(); err == nil {
		t.Error("zero token TTL must not validate")
	}

	badCost := base
	badCost.BcryptCost = 50
	if err := badCost.Validate(); err == nil {
		t.Error("out-of-range bcrypt cost must not validate")
	}
}

func TestEnvPredicates(t *testing.T) {
	dev := Config{Env: "development"}
	if !dev.IsDev() || dev.IsProduction() {
		t.Error("development predicates wrong")
	}
	prod := Config{Env: "production"}
	if prod.IsDev() || !prod.IsProduction() {
		t.Error("production predicates wrong")
	}
}
