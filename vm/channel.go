package vm

// Channel is an IO that exchanges values over Go channels, so that engines
// running on separate goroutines can be wired into chains, rings and
// networks. Each Channel is owned by the goroutine driving its engine.
type Channel struct {
	in   <-chan int64
	out  chan<- int64
	done     <-chan struct{}
	sendDone <-chan struct{}

	last    int64
	hasLast bool
}

// ChannelOption configures a Channel.
type ChannelOption func(*Channel)

// ChannelDone sets a channel that is closed when the peers of this backend
// are gone. A blocked Input or Output then returns ErrChannelClosed instead
// of waiting forever.
func ChannelDone(done <-chan struct{}) ChannelOption {
	return func(c *Channel) { c.done = done }
}

// ChannelSendDone sets a channel that is closed when the reader of the
// outbound channel is gone. Only Output gives up on it; Input keeps
// draining the inbound channel.
func ChannelSendDone(done <-chan struct{}) ChannelOption {
	return func(c *Channel) { c.sendDone = done }
}

// NewChannel returns a Channel receiving from in and sending to out.
func NewChannel(in <-chan int64, out chan<- int64, opts ...ChannelOption) *Channel {
	c := &Channel{in: in, out: out}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Input blocks until a value arrives. A closed inbound channel or a closed
// done channel yields ErrChannelClosed. Values already queued are always
// delivered before done is considered.
func (c *Channel) Input() (int64, error) {
	if v, ok, err := c.poll(); ok || err != nil {
		return v, err
	}
	select {
	case v, ok := <-c.in:
		if !ok {
			return 0, ErrChannelClosed
		}
		return v, nil
	case <-c.done:
		return 0, ErrChannelClosed
	}
}

// TryInput is the non-blocking form of Input. ok is false when no value is
// pending right now.
func (c *Channel) TryInput() (v int64, ok bool, err error) {
	if v, ok, err := c.poll(); ok || err != nil {
		return v, ok, err
	}
	select {
	case <-c.done:
		return 0, false, ErrChannelClosed
	default:
		return 0, false, nil
	}
}

func (c *Channel) poll() (int64, bool, error) {
	select {
	case v, open := <-c.in:
		if !open {
			return 0, false, ErrChannelClosed
		}
		return v, true, nil
	default:
		return 0, false, nil
	}
}

// Output sends v, blocking while the outbound channel is full. v is
// recorded as the last value produced even if the send is abandoned. If
// there is room, v is sent even when done is already closed.
func (c *Channel) Output(v int64) error {
	c.last, c.hasLast = v, true
	select {
	case c.out <- v:
		return nil
	default:
	}
	select {
	case c.out <- v:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-c.sendDone:
		return ErrChannelClosed
	}
}

// Last returns the most recent value produced and whether there was one. A
// terminal node of a pipeline reports its result this way after its engine
// halts.
func (c *Channel) Last() (int64, bool) {
	return c.last, c.hasLast
}
