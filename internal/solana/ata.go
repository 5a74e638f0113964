package solana

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Well-known SPL program addresses.
const (
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	SystemProgramID          = "11111111111111111111111111111111"
)

// DeriveATA derives the associated token account address for an owner and
// mint. Seeds are [owner, token program, mint] against the associated
// token program.
func DeriveATA(owner, mint string) (string, error) {
	ownerBytes, err := base58.Decode(owner)
	if err != nil {
		return "", fmt.Errorf("decode owner %s: %w", owner, err)
	}
	mintBytes, err := base58.Decode(mint)
	if err != nil {
		return "", fmt.Errorf("decode mint %s: %w", mint, err)
	}
	tokenProgram, err := base58.Decode(TokenProgramID)
	if err != nil {
		return "", fmt.Errorf("decode token program: %w", err)
	}
	ataProgram, err := base58.Decode(AssociatedTokenProgramID)
	if err != nil {
		return "", fmt.Errorf("decode associated token program: %w", err)
	}

	if len(ownerBytes) != 32 || len(mintBytes) != 32 {
		return "", fmt.Errorf("invalid key length for owner %s mint %s", owner, mint)
	}

	seeds := [][]byte{ownerBytes, tokenProgram, mintBytes}
	pda := DerivePDA(seeds, ataProgram)
	if pda == "" {
		return "", fmt.Errorf("no valid bump for owner %s mint %s", owner, mint)
	}
	return pda, nil
}

// DerivePDA derives a Program Derived Address using the Solana algorithm.
func DerivePDA(seeds [][]byte, programID []byte) string {
	// PDA derivation algorithm:
	// 1. Concatenate all seeds with bump
	// 2. Append program ID and "ProgramDerivedAddress" marker
	// 3. SHA256 hash
	// 4. Find bump seed that results in off-curve point

	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		// Check if point is off the ed25519 curve
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}

	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
