package crypto

import "testing"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := CheckPassword(hash, "secret"); err != nil {
		t.Fatalf("expected password to match")
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected password mismatch")
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("token-a") != HashToken("token-a") {
		t.Fatalf("expected stable hash")
	}
	if HashToken("token-a") == HashToken("token-b") {
		t.Fatalf("expected distinct hashes")
	}
	if HashToken("token-a") == "token-a" {
		t.Fatalf("expected hashed value, not the raw token")
	}
}
