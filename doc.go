// Package vecadd implements a minimal GPU compute pipeline: it compiles an
// elementwise-addition kernel, allocates three shared host/device buffers,
// dispatches one kernel launch across the whole array, waits for device
// completion, and verifies every output element exactly while measuring
// throughput.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/vecadd"
//
//		// Register compute backends. The cpu backend always opens;
//		// the wgpu backend opens when a GPU adapter is reachable.
//		_ "github.com/gogpu/vecadd/backend/cpu"
//		_ "github.com/gogpu/vecadd/backend/wgpu"
//	)
//
//	p, err := vecadd.New(vecadd.WithLength(1 << 24))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//
//	res, err := p.Run()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("%d ms\n", res.Elapsed.Milliseconds())
//	fmt.Printf("BW: %.3f GB/s\n", res.GBPerSecond())
//
// # Architecture
//
// The pipeline drives a compute device through the capability set defined
// in the backend package: compile, allocate, encode, submit, wait. One
// device instance owns the compiled pipeline state and the three buffers
// for its entire lifetime; command buffers are transient and single-use.
// The only synchronization primitive is the blocking wait after submit:
// host writes happen before commit, host reads happen after wait.
//
// # Failure model
//
// Initialization, allocation, and execution failures are fatal and carry
// distinct error kinds (see the backend package sentinels). A verification
// mismatch is reported as a *VerifyError with the offending index and both
// operand values; it signals a logic defect, not a resource problem.
package vecadd
