package main

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_MemoryDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("EVENT_TRANSPORT", "none")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Port != "8083" || cfg.OutboxPollEvery != 2*time.Second || cfg.WalkerTopic != "walker.profile.updated.v1" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	cases := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""}, "DATABASE_URL"},
		{map[string]string{"STORE_DRIVER": "sqlite"}, "STORE_DRIVER"},
		{map[string]string{"STORE_DRIVER": "memory", "EVENT_TRANSPORT": "rabbitmq", "AMQP_URL": ""}, "AMQP_URL"},
		{map[string]string{"STORE_DRIVER": "memory", "PORT": "99999"}, "PORT"},
		{map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": "postgres://localhost/pawwalk", "SEED_WALKERS": "[]"}, "SEED_WALKERS"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}
