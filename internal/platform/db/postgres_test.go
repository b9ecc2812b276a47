package db

import "testing"

func TestConnectRequiresDSN(t *testing.T) {
	if _, err := Connect(""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestCloseToleratesNil(t *testing.T) {
	var p *Postgres
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil close on nil handle, got %v", err)
	}
}
