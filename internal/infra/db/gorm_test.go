package db

import (
	"testing"

	"github.com/NasaVasa/alerty/internal/config"
)

func TestDSN(t *testing.T) {
	base := config.Config{
		DBHost:     "localhost",
		DBUser:     "alerty",
		DBPassword: "secret",
		DBName:     "alerts",
		DBPort:     5432,
		DBSSLMode:  "disable",
	}

	tests := []struct {
		name     string
		password string
		sslMode  string
		want     string
	}{
		{
			name:     "plain",
			password: "secret",
			sslMode:  "disable",
			want:     "host=localhost user=alerty password=secret dbname=alerts port=5432 sslmode=disable TimeZone=UTC",
		},
		{
			name:     "password with space and quote",
			password: `p w'd\x`,
			sslMode:  "require",
			want:     `host=localhost user=alerty password='p w\'d\\x' dbname=alerts port=5432 sslmode=require TimeZone=UTC`,
		},
		{
			name:     "empty sslmode omitted",
			password: "secret",
			want:     "host=localhost user=alerty password=secret dbname=alerts port=5432 TimeZone=UTC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.DBPassword = tt.password
			cfg.DBSSLMode = tt.sslMode
			if got := dsn(cfg); got != tt.want {
				t.Fatalf("dsn() = %q, want %q", got, tt.want)
			}
		})
	}
}
