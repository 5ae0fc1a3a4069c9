package domain

import (
	"strings"
	"testing"
	"time"
)

func TestNewToken(t *testing.T) {
	tok, err := NewToken(ClassAnchor, SourceUser, "focus on review", time.Hour)
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}

	if !strings.HasPrefix(tok.ID, TokenIDPrefix) {
		t.Errorf("ID = %q, want prefix %q", tok.ID, TokenIDPrefix)
	}
	if len(tok.ID) != TokenIDLength {
		t.Errorf("len(ID) = %d, want %d", len(tok.ID), TokenIDLength)
	}
	if tok.State != StateCreated {
		t.Errorf("State = %q, want %q", tok.State, StateCreated)
	}
	if tok.Version != 1 {
		t.Errorf("Version = %d, want 1", tok.Version)
	}
	if tok.TTL != time.Hour.Milliseconds() {
		t.Errorf("TTL = %d, want %d", tok.TTL, time.Hour.Milliseconds())
	}
	if tok.ExpiresAt != tok.CreatedAt+tok.TTL {
		t.Errorf("ExpiresAt = %d, want CreatedAt+TTL = %d", tok.ExpiresAt, tok.CreatedAt+tok.TTL)
	}
}

func TestGenerateTokenID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateTokenID()
		if err != nil {
			t.Fatalf("GenerateTokenID() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate token ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestIsValidTokenID(t *testing.T) {
	valid, err := GenerateTokenID()
	if err != nil {
		t.Fatalf("GenerateTokenID() error = %v", err)
	}

	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"generated id", valid, true},
		{"empty", "", false},
		{"wrong prefix", "tk-01h455vb4pex5vsknk084sn02q", false},
		{"too short", "gt-01h455vb4p", false},
		{"not ulid", "gt-" + strings.Repeat("!", 26), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTokenID(tt.id); got != tt.want {
				t.Errorf("IsValidTokenID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestToken_IsExpired(t *testing.T) {
	tok, _ := NewToken(ClassWarning, SourceSystem, "deadline pressure rising", time.Hour)
	if tok.IsExpired() {
		t.Error("fresh token should not be expired")
	}

	tok.ExpiresAt = time.Now().UnixMilli() - 1000
	if !tok.IsExpired() {
		t.Error("token past ExpiresAt should be expired")
	}
}

func TestToken_TTLDuration(t *testing.T) {
	tok, _ := NewToken(ClassAnchor, SourceUser, "context anchor", time.Hour)

	d := tok.TTLDuration()
	if d <= 0 || d > time.Hour {
		t.Errorf("TTLDuration() = %v, want within (0, 1h]", d)
	}

	tok.ExpiresAt = time.Now().UnixMilli() - 1
	if got := tok.TTLDuration(); got != 0 {
		t.Errorf("TTLDuration() after expiry = %v, want 0", got)
	}
}

func TestToken_Refresh(t *testing.T) {
	tok, _ := NewToken(ClassAnchor, SourceUser, "context anchor", time.Hour)
	before := tok.ExpiresAt

	tok.Refresh(30 * time.Minute)

	if tok.ExpiresAt != before+(30*time.Minute).Milliseconds() {
		t.Errorf("ExpiresAt = %d, want %d", tok.ExpiresAt, before+(30*time.Minute).Milliseconds())
	}
	if tok.TTL != (90 * time.Minute).Milliseconds() {
		t.Errorf("TTL = %d, want %d", tok.TTL, (90 * time.Minute).Milliseconds())
	}
}

func TestToken_Attenuate(t *testing.T) {
	tok, _ := NewToken(ClassAnchor, SourceUser, "context anchor", time.Hour)
	tok.Intensity = 0.8

	tok.Attenuate(0.5)
	if tok.Intensity != 0.4 {
		t.Errorf("Intensity = %f, want 0.4", tok.Intensity)
	}
}

func TestToken_CanTransition(t *testing.T) {
	tests := []struct {
		from TokenState
		to   TokenState
		want bool
	}{
		{StateCreated, StateActive, true},
		{StateCreated, StateMutated, false},
		{StateActive, StateMutated, true},
		{StateActive, StateExpired, true},
		{StateActive, StateForgotten, true},
		{StateMutated, StateActive, true},
		{StateExpired, StateActive, false},
		{StateForgotten, StateActive, false},
		{StateExpired, StateForgotten, false},
	}

	for _, tt := range tests {
		tok := &Token{State: tt.from}
		if got := tok.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTokenState_Terminal(t *testing.T) {
	if StateActive.Terminal() || StateCreated.Terminal() || StateMutated.Terminal() {
		t.Error("non-terminal states reported terminal")
	}
	if !StateExpired.Terminal() || !StateForgotten.Terminal() {
		t.Error("terminal states not reported terminal")
	}
}

func TestVector_Bounded(t *testing.T) {
	tests := []struct {
		name string
		v    Vector
		want bool
	}{
		{"zero", Vector{}, true},
		{"edges", Vector{X: -1, Y: 1, Z: 1}, true},
		{"x out", Vector{X: 1.1}, false},
		{"z out", Vector{Z: -2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Bounded(); got != tt.want {
				t.Errorf("Bounded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToken_Validate(t *testing.T) {
	newValid := func() *Token {
		tok, _ := NewToken(ClassConsent, SourceUser, "approval gate for deploy", time.Hour)
		return tok
	}

	tests := []struct {
		name    string
		mutate  func(*Token)
		wantErr bool
	}{
		{"valid", func(*Token) {}, false},
		{"bad class", func(tok *Token) { tok.Class = "ghost" }, true},
		{"bad source", func(tok *Token) { tok.Source = "daemon" }, true},
		{"unbounded vector", func(tok *Token) { tok.Vector.X = 2 }, true},
		{"intensity above one", func(tok *Token) { tok.Intensity = 1.2 }, true},
		{"empty explanation", func(tok *Token) { tok.Explanation = "" }, true},
		{"long explanation", func(tok *Token) { tok.Explanation = strings.Repeat("a", 201) }, true},
		{"negative depth", func(tok *Token) { tok.Depth = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := newValid()
			tt.mutate(tok)
			err := tok.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsDomainError(err, "GE-VAL-4000") {
				t.Errorf("Validate() code = %q, want GE-VAL-4000", GetErrorCode(err))
			}
		})
	}
}

func TestToken_Clone(t *testing.T) {
	tok, _ := NewToken(ClassAnchor, SourceUser, "context anchor", time.Hour)
	clone := tok.Clone()

	clone.Intensity = 0.1
	clone.Explanation = "changed"

	if tok.Intensity == clone.Intensity || tok.Explanation == clone.Explanation {
		t.Error("Clone() should not share mutable state with original")
	}
}
