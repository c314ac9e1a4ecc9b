package circuit

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/intcode/vm"
	"golang.org/x/sync/errgroup"
)

// Default network shape.
const (
	DefaultNodes   = 50
	DefaultNATAddr = 255
)

// ErrStalled is returned when every node is idle and the NAT has nothing to
// resend.
var ErrStalled = errors.New("circuit: network idle with no NAT packet")

// Packet is one message on the network.
type Packet struct {
	Dest int64
	X, Y int64
}

// Network runs one engine per address. Each node first reads its own
// address, then exchanges packets: three consecutive outputs (dest, x, y)
// form a packet, and a node asking for input with nothing queued receives
// -1. Packets addressed to NAT are held; when the whole network is idle the
// NAT resends the last one to address 0.
type Network struct {
	Nodes   int
	NAT     int64
	Options []vm.Option
}

// NetworkResult reports the two values the NAT observes.
type NetworkResult struct {
	FirstNATY int64 // Y of the first packet sent to the NAT
	RepeatedY int64 // first Y the NAT delivered to node 0 twice in a row
}

type eventKind int

const (
	eventPacket eventKind = iota
	eventIdle
	eventStopped
)

type event struct {
	kind     eventKind
	node     int
	packet   Packet
	received int // packets read, for eventIdle
}

// Run starts the network and blocks until the NAT delivers the same Y to
// node 0 twice in a row, a node fails, or ctx is cancelled.
func (n Network) Run(ctx context.Context, program []int64) (NetworkResult, error) {
	nodes := n.Nodes
	if nodes <= 0 {
		nodes = DefaultNodes
	}
	nat := n.NAT
	if nat == 0 {
		nat = DefaultNATAddr
	}
	if nat >= 0 && nat < int64(nodes) {
		return NetworkResult{}, fmt.Errorf("circuit: NAT address %d collides with a node", nat)
	}

	if err := ctx.Err(); err != nil {
		return NetworkResult{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	events := make(chan event)
	mail := make([]chan Packet, nodes)
	for i := range mail {
		mail[i] = make(chan Packet)
		inbox := make(chan int64)
		i := i
		g.Go(func() error { return pump(runCtx, mail[i], inbox) })
		g.Go(func() error {
			return n.node(runCtx, i, program, vm.NewChannel(inbox, nil, vm.ChannelDone(runCtx.Done())), events)
		})
	}

	var (
		res       NetworkResult
		seenNAT   bool
		natPacket Packet
		haveNAT   bool
		lastY     int64
		haveLastY bool
		delivered = make([]int, nodes)
		reported  = make([]int, nodes)
		stopped   = make([]bool, nodes)
	)
	for i := range reported {
		reported[i] = -1
	}

	deliver := func(to int, p Packet) bool {
		if stopped[to] {
			log.Warningf("node %d has stopped, dropping packet", to)
			return true
		}
		select {
		case mail[to] <- p:
			delivered[to]++
			return true
		case <-runCtx.Done():
			return false
		}
	}

	quiescent := func() bool {
		for i := 0; i < nodes; i++ {
			if !stopped[i] && reported[i] != delivered[i] {
				return false
			}
		}
		return true
	}

	finish := func(err error) (NetworkResult, error) {
		cancel()
		if werr := g.Wait(); werr != nil {
			return NetworkResult{}, werr
		}
		if err != nil {
			return NetworkResult{}, err
		}
		return res, nil
	}

	for {
		if runCtx.Err() != nil {
			return finish(ctx.Err())
		}
		select {
		case ev := <-events:
			switch ev.kind {
			case eventPacket:
				p := ev.packet
				switch {
				case p.Dest == nat:
					if !seenNAT {
						res.FirstNATY, seenNAT = p.Y, true
						log.Infof("first packet to NAT: y=%d", p.Y)
					}
					natPacket, haveNAT = p, true
				case p.Dest >= 0 && p.Dest < int64(nodes):
					if !deliver(int(p.Dest), p) {
						return finish(ctx.Err())
					}
				default:
					log.Warningf("node %d sent to unknown address %d, dropping", ev.node, p.Dest)
				}
			case eventIdle:
				reported[ev.node] = ev.received
			case eventStopped:
				stopped[ev.node] = true
			}
		case <-runCtx.Done():
			return finish(ctx.Err())
		}

		if !quiescent() {
			continue
		}
		if !haveNAT {
			return finish(ErrStalled)
		}
		log.Debugf("network idle, NAT sends x=%d y=%d to 0", natPacket.X, natPacket.Y)
		if haveLastY && lastY == natPacket.Y {
			res.RepeatedY = natPacket.Y
			return finish(nil)
		}
		lastY, haveLastY = natPacket.Y, true
		if !deliver(0, Packet{Dest: 0, X: natPacket.X, Y: natPacket.Y}) {
			return finish(ctx.Err())
		}
		if stopped[0] {
			return finish(ErrStalled)
		}
	}
}

// pump is a node's unbounded mailbox. It always accepts packets from the
// orchestrator and hands their values to the node in order.
func pump(ctx context.Context, in <-chan Packet, out chan<- int64) error {
	var queue []int64
	for {
		var (
			send chan<- int64
			next int64
		)
		if len(queue) > 0 {
			send, next = out, queue[0]
		}
		select {
		case p := <-in:
			queue = append(queue, p.X, p.Y)
		case send <- next:
			queue = queue[1:]
		case <-ctx.Done():
			return nil
		}
	}
}

// node drives one engine. Once x of a packet has been read, y is waited for
// rather than polled, since packets are always queued whole. After two
// empty polls with no output in between the node reports itself idle and
// blocks until a packet arrives.
func (n Network) node(ctx context.Context, addr int, program []int64, in *vm.Channel, events chan<- event) error {
	send := func(ev event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	e := vm.New(program, n.Options...)
	var (
		input      int64
		booted     bool
		values     int
		emptyPolls int
		out        []int64
	)
	for {
		ev, err := e.Step(input)
		if err != nil {
			return fmt.Errorf("circuit: node %d: %w", addr, err)
		}
		switch ev.Status {
		case vm.StatusAwaitingInput:
			if !booted {
				input, booted = int64(addr), true
				continue
			}
			var (
				v  int64
				ok bool
			)
			if values%2 == 1 {
				v, err = in.Input()
				ok = err == nil
			} else {
				v, ok, err = in.TryInput()
			}
			if err == nil && !ok && emptyPolls >= 2 {
				if !send(event{kind: eventIdle, node: addr, received: values / 2}) {
					return nil
				}
				v, err = in.Input()
				ok = err == nil
			}
			if errors.Is(err, vm.ErrChannelClosed) {
				return nil
			}
			if err != nil {
				return err
			}
			if ok {
				input = v
				values++
				emptyPolls = 0
			} else {
				input = -1
				emptyPolls++
			}

		case vm.StatusOutput:
			emptyPolls = 0
			out = append(out, ev.Value)
			if len(out) == 3 {
				p := Packet{Dest: out[0], X: out[1], Y: out[2]}
				out = out[:0]
				if !send(event{kind: eventPacket, node: addr, packet: p}) {
					return nil
				}
			}

		case vm.StatusTerminated:
			log.Debugf("node %d halted", addr)
			send(event{kind: eventStopped, node: addr})
			return nil
		}
	}
}
