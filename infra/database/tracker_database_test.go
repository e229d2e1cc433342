package database

import "testing"

func TestWithSimpleProtocol(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u@h/db", "postgres://u@h/db?default_query_exec_mode=simple_protocol"},
		{"postgres://u@h/db?sslmode=disable", "postgres://u@h/db?sslmode=disable&default_query_exec_mode=simple_protocol"},
		{"postgres://u@h/db?default_query_exec_mode=exec", "postgres://u@h/db?default_query_exec_mode=exec"},
	}
	for _, tt := range tests {
		if got := withSimpleProtocol(tt.in); got != tt.want {
			t.Errorf("withSimpleProtocol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaults(t *testing.T) {
	if c := DefaultPostgresConfig(0); c.MaxConns != 25 {
		t.Errorf("postgres default max conns = %d", c.MaxConns)
	}
	if c := DefaultRedisConfig(0); c.PoolSize != 20 {
		t.Errorf("redis default pool size = %d", c.PoolSize)
	}
}
