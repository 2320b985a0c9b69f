// Command vmcored drives a small simulated fault workload against the
// virtual-memory core, exercising cold zero-fill faults with stack
// growth, and forced evictions when the demo is run with a frame
// budget smaller than the number of pages it touches.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"vmcore/internal/config"
	"vmcore/internal/diag"
	"vmcore/internal/pagesize"
	"vmcore/internal/subsystem"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults apply if empty)")
	physBaseFlag := flag.Uint64("phys-base", 0x40000000, "top of the simulated user address range")
	pages := flag.Int("pages", 8, "number of stack-adjacent pages to touch")
	flag.Parse()

	logger := log.New(os.Stdout, "vmcored: ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	core, err := subsystem.New(cfg, logger)
	if err != nil {
		logger.Fatalf("subsystem: %v", err)
	}

	physBase := uintptr(*physBaseFlag)
	proc := core.NewProcess(physBase)
	defer proc.Exit()

	logger.Printf("simulating %d faulting accesses walking the stack downward", *pages)

	for i := 0; i < *pages; i++ {
		addr := physBase - uintptr(i+1)*pagesize.Size
		// The simulated stack pointer tracks the deepest page touched
		// so far, the way a real stack pointer decreases as a thread
		// pushes into newly grown pages.
		sp := addr
		write := i%2 == 0
		if err := proc.AS.Fault(addr, sp, write, true); err != nil {
			logger.Printf("fault at %#x failed: %v", addr, err)
			continue
		}
	}

	fmt.Println(diag.Summary(core.Frames()))
}
