// Command vecadd runs one elementwise float32 addition over 2^24 elements
// on the best available compute device, reports the wall time and
// effective memory bandwidth of the dispatch, and verifies every output
// element. It takes no flags and keeps no state.
//
// Exit codes: 1 device or kernel setup failed, 2 buffer allocation
// failed, 3 dispatch failed, 4 verification failed.
package main

import (
	"fmt"
	"os"

	"github.com/gogpu/vecadd"

	_ "github.com/gogpu/vecadd/backend/cpu"
	_ "github.com/gogpu/vecadd/backend/wgpu"
)

func main() {
	os.Exit(run())
}

func run() int {
	p, err := vecadd.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer p.Close()

	if err := p.PrepareData(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	res, err := p.Dispatch()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 3
	}
	fmt.Printf("%d ms\n", res.Milliseconds())
	fmt.Printf("BW: %.3f GB/s\n", res.GBPerSecond())

	if err := p.Verify(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 4
	}
	return 0
}
