package vecadd

import (
	"errors"
	"strings"
	"testing"
)

func TestVerify(t *testing.T) {
	p := newTestPipeline(t, WithSeed(3))

	if err := p.PrepareData(); err != nil {
		t.Fatalf("PrepareData error: %v", err)
	}
	if _, err := p.Dispatch(); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if err := p.Verify(); err != nil {
		t.Errorf("Verify error = %v, want nil", err)
	}
}

func TestVerifyNotPrepared(t *testing.T) {
	p := newTestPipeline(t)
	if err := p.Verify(); !errors.Is(err, ErrNotPrepared) {
		t.Errorf("Verify error = %v, want ErrNotPrepared", err)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	p := newTestPipeline(t, WithLength(64))

	if err := p.PrepareData(); err != nil {
		t.Fatalf("PrepareData error: %v", err)
	}
	if _, err := p.Dispatch(); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}

	// Corrupt one element and verify that exactly it is reported.
	const k = 17
	p.Output()[k] += 1

	err := p.Verify()
	var verr *VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("Verify error = %v, want *VerifyError", err)
	}
	if verr.Index != k {
		t.Errorf("Index = %d, want %d", verr.Index, k)
	}
	if verr.Got != p.Output()[k] {
		t.Errorf("Got = %g, want %g", verr.Got, p.Output()[k])
	}
	if verr.A != p.InputA()[k] || verr.B != p.InputB()[k] {
		t.Errorf("operands = %g, %g, want %g, %g",
			verr.A, verr.B, p.InputA()[k], p.InputB()[k])
	}
}

func TestVerifyReportsFirstMismatch(t *testing.T) {
	p := newTestPipeline(t, WithLength(16))

	if err := p.PrepareData(); err != nil {
		t.Fatalf("PrepareData error: %v", err)
	}
	if _, err := p.Dispatch(); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	p.Output()[5] += 1
	p.Output()[11] += 1

	var verr *VerifyError
	if err := p.Verify(); !errors.As(err, &verr) {
		t.Fatalf("Verify error = %v, want *VerifyError", err)
	}
	if verr.Index != 5 {
		t.Errorf("Index = %d, want first mismatch 5", verr.Index)
	}
}

func TestVerifyErrorMessage(t *testing.T) {
	err := &VerifyError{Index: 9, Got: 3, A: 1, B: 1}
	msg := err.Error()
	for _, want := range []string{"index 9", "result=3", "want 2", "a=1", "b=1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want to contain %q", msg, want)
		}
	}
}
