// Package circuit wires several Intcode engines together: amplifier chains,
// amplifier feedback rings and a packet-switched network. Each engine in a
// ring or network runs on its own goroutine and talks to its neighbours
// only through vm.Channel backends.
package circuit

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/intcode/vm"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

var log = commonlog.GetLogger("intcode.circuit")

// ErrNoOutput is returned when the last amplifier halts without sending
// anything.
var ErrNoOutput = errors.New("circuit: final amplifier produced no output")

// Chain runs one amplifier per phase, in order. Each amplifier is given its
// phase and then the previous amplifier's output; the first one gets 0. It
// returns the output of the last amplifier.
func Chain(program []int64, phases []int64, opts ...vm.Option) (int64, error) {
	if len(phases) == 0 {
		return 0, fmt.Errorf("circuit: no phases")
	}
	var signal int64
	for i, phase := range phases {
		buf := vm.NewBuffer(phase, signal)
		if err := vm.Run(vm.New(program, opts...), buf); err != nil {
			return 0, fmt.Errorf("circuit: amplifier %d: %w", i, err)
		}
		out, ok := buf.Last()
		if !ok {
			return 0, fmt.Errorf("circuit: amplifier %d: %w", i, ErrNoOutput)
		}
		signal = out
	}
	return signal, nil
}

// Feedback runs the amplifiers as a ring: amplifier i sends its outputs to
// amplifier (i+1) mod n. Every inbound channel starts with the amplifier's
// phase; the first one also gets the initial signal 0. When all amplifiers
// have halted, the last value sent by the final amplifier is returned.
func Feedback(ctx context.Context, program []int64, phases []int64, opts ...vm.Option) (int64, error) {
	n := len(phases)
	if n == 0 {
		return 0, fmt.Errorf("circuit: no phases")
	}

	links := make([]chan int64, n)
	stopped := make([]chan struct{}, n)
	for i, phase := range phases {
		links[i] = make(chan int64, 2)
		links[i] <- phase
		stopped[i] = make(chan struct{})
	}
	links[0] <- 0

	g, gctx := errgroup.WithContext(ctx)
	backends := make([]*vm.Channel, n)
	for i := range phases {
		next := (i + 1) % n
		// Node i keeps reading until its upstream closes links[i], but stops
		// writing once the reader of links[next] is gone.
		backends[i] = vm.NewChannel(links[i], links[next],
			vm.ChannelDone(gctx.Done()), vm.ChannelSendDone(stopped[next]))
	}

	for i := range phases {
		i := i
		g.Go(func() error {
			next := (i + 1) % n
			defer close(stopped[i])
			defer close(links[next])

			err := vm.Run(vm.New(program, opts...), backends[i])
			if errors.Is(err, vm.ErrChannelClosed) {
				log.Debugf("amplifier %d: peer gone", i)
				return nil
			}
			if err != nil {
				return fmt.Errorf("circuit: amplifier %d: %w", i, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	out, ok := backends[n-1].Last()
	if !ok {
		return 0, ErrNoOutput
	}
	return out, nil
}

// BestPhases tries every ordering of phases and returns the one giving the
// highest signal, with Chain or, when feedback is set, Feedback.
func BestPhases(ctx context.Context, program []int64, phases []int64, feedback bool, opts ...vm.Option) ([]int64, int64, error) {
	if len(phases) == 0 {
		return nil, 0, fmt.Errorf("circuit: no phases")
	}
	perm := make([]int64, len(phases))
	copy(perm, phases)
	sort.Slice(perm, func(i, j int) bool { return perm[i] < perm[j] })

	var (
		best   []int64
		signal int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		var (
			out int64
			err error
		)
		if feedback {
			out, err = Feedback(ctx, program, perm, opts...)
		} else {
			out, err = Chain(program, perm, opts...)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("phases %v: %w", perm, err)
		}
		if best == nil || out > signal {
			best = append(best[:0:0], perm...)
			signal = out
		}
		if !nextPermutation(perm) {
			break
		}
	}
	log.Infof("best phases %v -> %d", best, signal)
	return best, signal, nil
}

// nextPermutation rearranges p into the next lexicographic ordering and
// reports whether there was one.
func nextPermutation(p []int64) bool {
	i := len(p) - 2
	for i >= 0 && p[i] >= p[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(p) - 1
	for p[j] <= p[i] {
		j--
	}
	p[i], p[j] = p[j], p[i]
	for l, r := i+1, len(p)-1; l < r; l, r = l+1, r-1 {
		p[l], p[r] = p[r], p[l]
	}
	return true
}
