package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestSumSHA256(t *testing.T) {
	want := sha256.Sum256([]byte("hello"))
	if got := SumSHA256([]byte("hello")); got != "sha256:"+hex.EncodeToString(want[:]) {
		t.Errorf("SumSHA256() = %q", got)
	}
}

func TestParseTaggedHash(t *testing.T) {
	tests := []struct {
		name     string
		tagged   string
		wantAlg  string
		wantBody string
		wantErr  bool
	}{
		{"hex body", "sha256:9f86d081884c7d65", "sha256", "9f86d081884c7d65", false},
		{"vendor body", "sha256:scd31_0xf7a9e3b2", "sha256", "scd31_0xf7a9e3b2", false},
		{"no tag", "9f86d081884c7d65", "", "", true},
		{"empty body", "sha256:", "", "", true},
		{"unknown algorithm", "md5:abcdef", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alg, body, err := ParseTaggedHash(tt.tagged)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTaggedHash(%q) error = %v, wantErr %v", tt.tagged, err, tt.wantErr)
			}
			if alg != tt.wantAlg || body != tt.wantBody {
				t.Errorf("ParseTaggedHash(%q) = (%q, %q), want (%q, %q)",
					tt.tagged, alg, body, tt.wantAlg, tt.wantBody)
			}
		})
	}
}

func TestGenesisAccumulator(t *testing.T) {
	g := GenesisAccumulator()
	if g != SumSHA256([]byte(GenesisSeed)) {
		t.Errorf("GenesisAccumulator() = %q", g)
	}
	if g != GenesisAccumulator() {
		t.Error("GenesisAccumulator() not deterministic")
	}
}

func TestChainStep(t *testing.T) {
	acc0 := GenesisAccumulator()
	leaf := SumSHA256([]byte("beacon"))

	acc1 := ChainStep(acc0, leaf)
	if acc1 != SumSHA256([]byte(acc0+leaf)) {
		t.Errorf("ChainStep() = %q", acc1)
	}
	if acc1 == acc0 {
		t.Error("ChainStep() must advance the accumulator")
	}

	// Order sensitivity: swapping two leaves changes the final value.
	leafB := SumSHA256([]byte("other"))
	ab := ChainStep(ChainStep(acc0, leaf), leafB)
	ba := ChainStep(ChainStep(acc0, leafB), leaf)
	if ab == ba {
		t.Error("accumulator must be order sensitive")
	}
}
