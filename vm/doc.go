// Package vm implements the Intcode virtual machine.
//
// This package contains:
//   - the instruction decoder (opcode plus three parameter modes)
//   - a grow-on-demand int64 memory with position, immediate and relative
//     addressing
//   - the suspendable execution engine (Engine.Step)
//   - interchangeable I/O backends: Buffer, Console, ASCII and Channel
//
// An Engine never blocks on I/O itself. Step runs until the program needs
// input, produces one output or halts, and hands control back to the caller.
// Run connects an Engine to any IO backend and drives it to completion; a
// Channel backend lets many engines, each on its own goroutine, exchange
// values as a network.
package vm
