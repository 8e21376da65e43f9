package normalize

import (
	"errors"
	"testing"

	"github.com/packetninja/dpbridge/internal/profile"
)

// temperatureRule is the canonical tenths-of-degree sensor rule used
// throughout these tests.
func temperatureRule() profile.ConversionRule {
	return profile.ConversionRule{
		Kind:              profile.RuleDivisor,
		Divisor:           1,
		ValidRange:        profile.Range{Min: -40, Max: 125},
		TypicalRange:      profile.Range{Min: -10, Max: 40},
		CandidateDivisors: []float64{100, 10, 1},
	}
}

// ─── Base Transform & Idempotence ──────────────────────────────────

func TestApplyInRangeValueUnchanged(t *testing.T) {
	rule := profile.ConversionRule{
		Kind:              profile.RuleDivisor,
		Divisor:           1,
		ValidRange:        profile.Range{Min: 0, Max: 100},
		CandidateDivisors: []float64{100, 10, 1},
	}

	got, err := Apply(float64(35), rule)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !got.IsValid || got.Correction != CorrectionNone {
		t.Errorf("Apply() = %+v, want valid with no correction", got)
	}
	if got.Value.(float64) != 35 {
		t.Errorf("Apply() value = %v, want 35 unchanged", got.Value)
	}
}

func TestApplyBaseTransformParameters(t *testing.T) {
	tests := []struct {
		name string
		rule profile.ConversionRule
		raw  float64
		want float64
	}{
		{
			name: "divisor only",
			rule: profile.ConversionRule{Kind: profile.RuleDivisor, Divisor: 10,
				ValidRange: profile.Range{Min: 0, Max: 100}},
			raw:  255,
			want: 25.5,
		},
		{
			name: "multiplier only",
			rule: profile.ConversionRule{Kind: profile.RuleMultiplier, Multiplier: 2,
				ValidRange: profile.Range{Min: 0, Max: 100}},
			raw:  30,
			want: 60,
		},
		{
			name: "divisor multiplier and offset",
			rule: profile.ConversionRule{Kind: profile.RuleDivisor, Divisor: 2, Multiplier: 10, Offset: 5,
				ValidRange: profile.Range{Min: 0, Max: 100}},
			raw:  10,
			want: 55,
		},
		{
			name: "no range configured passes through",
			rule: profile.ConversionRule{Kind: profile.RuleDivisor, Divisor: 10},
			raw:  99999,
			want: 9999.9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.raw, tt.rule)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !got.IsValid || got.Value.(float64) != tt.want {
				t.Errorf("Apply() = %+v, want value %v", got, tt.want)
			}
		})
	}
}

// ─── Correction Search ─────────────────────────────────────────────

func TestApplyDivisorCorrectionDeterminism(t *testing.T) {
	// The spec-level determinism case: v=3500 with validRange [0,100]
	// and candidates [100,10,1] must land at 35 via divisor 100.
	rule := profile.ConversionRule{
		Kind:              profile.RuleDivisor,
		Divisor:           1,
		ValidRange:        profile.Range{Min: 0, Max: 100},
		CandidateDivisors: []float64{100, 10, 1},
	}

	got, err := Apply(float64(3500), rule)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !got.IsValid {
		t.Fatal("Apply() rejected a correctable value")
	}
	if got.Correction != CorrectionDivisor {
		t.Errorf("correction = %q, want divisor", got.Correction)
	}
	if got.AppliedDivisor != 100 {
		t.Errorf("applied divisor = %v, want 100", got.AppliedDivisor)
	}
	if got.Value.(float64) != 35 {
		t.Errorf("value = %v, want 35", got.Value)
	}
}

func TestApplyDivisorSearchLargestFirst(t *testing.T) {
	// Candidates are configured out of order; search must still try
	// the largest first, and must skip the identity divisor.
	rule := profile.ConversionRule{
		Kind:              profile.RuleDivisor,
		Divisor:           1,
		ValidRange:        profile.Range{Min: 0, Max: 100},
		CandidateDivisors: []float64{1, 10, 1000, 100},
	}

	// 9000/1000 = 9 and 9000/100 = 90 are both valid; largest-first
	// means 1000 wins.
	got, err := Apply(float64(9000), rule)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got.AppliedDivisor != 1000 {
		t.Errorf("applied divisor = %v, want 1000 (largest first)", got.AppliedDivisor)
	}
}

func TestApplyMultiplierCorrection(t *testing.T) {
	// Raw percentage reported as a 0-1 fraction: divisors cannot fix
	// it, the configured multiplier can.
	rule := profile.ConversionRule{
		Kind:                 profile.RuleDivisor,
		Divisor:              1,
		ValidRange:           profile.Range{Min: 5, Max: 100},
		CandidateDivisors:    []float64{100, 10},
		CandidateMultipliers: []float64{100},
	}

	got, err := Apply(float64(0.42), rule)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got.Correction != CorrectionMultiplier || got.AppliedMultiplier != 100 {
		t.Errorf("Apply() = %+v, want multiplier correction by 100", got)
	}
	if got.Value.(float64) != 42 {
		t.Errorf("value = %v, want 42", got.Value)
	}
}

func TestApplyClampAndReject(t *testing.T) {
	rule := profile.ConversionRule{
		Kind:              profile.RuleDivisor,
		Divisor:           1,
		ValidRange:        profile.Range{Min: 10, Max: 100},
		CandidateDivisors: []float64{},
	}

	t.Run("below minimum clamps", func(t *testing.T) {
		got, err := Apply(float64(3), rule)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if !got.IsValid || got.Correction != CorrectionClampedMin {
			t.Errorf("Apply() = %+v, want clamped_min", got)
		}
		if got.Value.(float64) != 10 {
			t.Errorf("value = %v, want clamped to 10", got.Value)
		}
	})

	t.Run("above maximum rejects", func(t *testing.T) {
		got, err := Apply(float64(1e9), rule)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if got.IsValid || got.Correction != CorrectionRejected || got.Value != nil {
			t.Errorf("Apply() = %+v, want rejected with nil value", got)
		}
	})
}

// ─── Direct Transforms ─────────────────────────────────────────────

func TestApplyBitExtract(t *testing.T) {
	tests := []struct {
		name string
		rule profile.ConversionRule
		raw  any
		want any
	}{
		{"bit 0 set", profile.ConversionRule{Kind: profile.RuleBitExtract, Bit: 0}, uint32(0x01), true},
		{"bit 0 clear", profile.ConversionRule{Kind: profile.RuleBitExtract, Bit: 0}, uint32(0x02), false},
		{"bit 3 set", profile.ConversionRule{Kind: profile.RuleBitExtract, Bit: 3}, uint32(0x08), true},
		{"boolean passthrough", profile.ConversionRule{Kind: profile.RuleBitExtract, Bit: 0}, true, true},
		{"full mask", profile.ConversionRule{Kind: profile.RuleBitExtract, FullMask: true}, uint32(0x0A), int64(10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.raw, tt.rule)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !got.IsValid || got.Value != tt.want {
				t.Errorf("Apply() = %+v, want value %v", got, tt.want)
			}
			if got.Correction != CorrectionNone {
				t.Errorf("correction = %q, direct transforms never correct", got.Correction)
			}
		})
	}
}

func TestApplyEnumMap(t *testing.T) {
	rule := profile.ConversionRule{
		Kind: profile.RuleEnumMap,
		Enum: map[uint8]string{0: "off", 1: "heat", 2: "cool"},
	}

	got, err := Apply(uint8(1), rule)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got.Value != "heat" {
		t.Errorf("Apply() = %v, want heat", got.Value)
	}

	// Unmapped ordinal passes through as the raw ordinal.
	got, err = Apply(uint8(7), rule)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got.Value != int64(7) {
		t.Errorf("Apply() = %v, want ordinal 7 passthrough", got.Value)
	}
}

func TestApplyCustom(t *testing.T) {
	rule := profile.ConversionRule{
		Kind: profile.RuleCustom,
		Custom: func(raw any) (any, error) {
			v, _ := raw.(int64)
			return v * 2, nil
		},
	}

	got, err := Apply(int64(21), rule)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got.Value != int64(42) {
		t.Errorf("Apply() = %v, want 42", got.Value)
	}

	_, err = Apply(int64(1), profile.ConversionRule{Kind: profile.RuleCustom})
	if !errors.Is(err, ErrMissingCustomFunc) {
		t.Errorf("Apply() error = %v, want ErrMissingCustomFunc", err)
	}
}

func TestApplyUnknownKind(t *testing.T) {
	_, err := Apply(float64(1), profile.ConversionRule{Kind: profile.RuleKind("bogus")})
	if !errors.Is(err, ErrUnknownRuleKind) {
		t.Errorf("Apply() error = %v, want ErrUnknownRuleKind", err)
	}
}

func TestApplyNonNumeric(t *testing.T) {
	_, err := Apply("text", temperatureRule())
	if !errors.Is(err, ErrNotNumeric) {
		t.Errorf("Apply() error = %v, want ErrNotNumeric", err)
	}
}
