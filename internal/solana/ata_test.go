package solana

import (
	"testing"

	"github.com/mr-tron/base58"
)

const (
	testOwner = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"
	testMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func TestDeriveATA(t *testing.T) {
	ata, err := DeriveATA(testOwner, testMint)
	if err != nil {
		t.Fatalf("DeriveATA: %v", err)
	}

	decoded, err := base58.Decode(ata)
	if err != nil {
		t.Fatalf("derived address is not base58: %v", err)
	}
	if len(decoded) != 32 {
		t.Fatalf("expected 32-byte address, got %d bytes", len(decoded))
	}
	if isOnCurve(decoded) {
		t.Error("derived address must be off the ed25519 curve")
	}
}

func TestDeriveATA_Deterministic(t *testing.T) {
	first, err := DeriveATA(testOwner, testMint)
	if err != nil {
		t.Fatalf("DeriveATA: %v", err)
	}
	second, err := DeriveATA(testOwner, testMint)
	if err != nil {
		t.Fatalf("DeriveATA: %v", err)
	}
	if first != second {
		t.Errorf("derivation is not deterministic: %s vs %s", first, second)
	}
}

func TestDeriveATA_DiffersByOwnerAndMint(t *testing.T) {
	base, err := DeriveATA(testOwner, testMint)
	if err != nil {
		t.Fatalf("DeriveATA: %v", err)
	}

	otherOwner, err := DeriveATA(testMint, testMint)
	if err != nil {
		t.Fatalf("DeriveATA other owner: %v", err)
	}
	if base == otherOwner {
		t.Error("different owners must not share an associated account")
	}

	otherMint, err := DeriveATA(testOwner, testOwner)
	if err != nil {
		t.Fatalf("DeriveATA other mint: %v", err)
	}
	if base == otherMint {
		t.Error("different mints must not share an associated account")
	}
}

func TestDeriveATA_InvalidInput(t *testing.T) {
	if _, err := DeriveATA("not base58 0OIl", testMint); err == nil {
		t.Error("expected error for malformed owner")
	}
	if _, err := DeriveATA(testOwner, "short"); err == nil {
		t.Error("expected error for short mint")
	}
}
