package main

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"aracitakip/backend/internal/config"
	"aracitakip/backend/internal/store/memory"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []config.Config{
		{AuthSecret: "short", AdminPassword: "Kq7!vLm2#pXz"},
		{AuthSecret: "0123456789abcdef0123456789abcdef"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", AdminPassword: "password123"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", AdminPassword: "aaaaaaaaaaaa"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", AdminPassword: "Kq7!vLm2#pXz", ViewerUsername: "kasa", ViewerPassword: "123"},
	}
	for i, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("case %d: expected weak security config to be rejected", i)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", AdminPassword: "Kq7!vLm2#pXz"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestOpenPersisterFallsBackToMemory(t *testing.T) {
	persister, closers, err := openPersister(context.Background(), config.Config{SeedDemo: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("open persister: %v", err)
	}
	if len(closers) != 0 {
		t.Fatalf("expected no closers for memory store, got %d", len(closers))
	}
	if _, ok := persister.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", persister)
	}
	state, err := persister.Load(context.Background())
	if err != nil || len(state.Products) == 0 {
		t.Fatalf("expected seeded demo ledger, got %d products (err %v)", len(state.Products), err)
	}
}
