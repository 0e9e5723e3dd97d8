package vecadd

// Verify checks every output element against the sum of its operands
// using exact float32 equality. The kernel performs the same single
// addition the check does, so the values must match bit for bit; any
// mismatch is returned as a *VerifyError naming the first bad index.
func (p *Pipeline) Verify() error {
	if p.closed {
		return ErrClosed
	}
	if p.result == nil {
		return ErrNotPrepared
	}
	a, b, out := p.a.Float32(), p.b.Float32(), p.result.Float32()
	for i := range out {
		if out[i] != a[i]+b[i] {
			return &VerifyError{Index: i, Got: out[i], A: a[i], B: b[i]}
		}
	}
	return nil
}
