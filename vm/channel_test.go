package vm

import (
	"errors"
	"testing"
)

func TestChannel_TryInput(t *testing.T) {
	in := make(chan int64, 1)
	c := NewChannel(in, make(chan int64, 1))

	if _, ok, err := c.TryInput(); ok || err != nil {
		t.Fatalf("TryInput on empty channel = ok %v, err %v; want false, nil", ok, err)
	}

	in <- 42
	v, ok, err := c.TryInput()
	if !ok || err != nil || v != 42 {
		t.Fatalf("TryInput = %d, %v, %v; want 42, true, nil", v, ok, err)
	}

	close(in)
	if _, _, err := c.TryInput(); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("TryInput on closed channel error = %v, want ErrChannelClosed", err)
	}
	if _, err := c.Input(); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Input on closed channel error = %v, want ErrChannelClosed", err)
	}
}

func TestChannel_Done(t *testing.T) {
	done := make(chan struct{})
	c := NewChannel(make(chan int64), make(chan int64), ChannelDone(done))
	close(done)

	if _, err := c.Input(); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Input after done error = %v, want ErrChannelClosed", err)
	}
	if err := c.Output(1); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Output after done error = %v, want ErrChannelClosed", err)
	}
	if v, ok := c.Last(); !ok || v != 1 {
		t.Errorf("Last = %d, %v; want 1, true", v, ok)
	}
}

func TestChannel_SendDoneLeavesInputOpen(t *testing.T) {
	in := make(chan int64, 1)
	sendDone := make(chan struct{})
	c := NewChannel(in, make(chan int64), ChannelSendDone(sendDone))
	close(sendDone)

	if err := c.Output(5); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Output after send done error = %v, want ErrChannelClosed", err)
	}

	go func() { in <- 9 }()
	v, err := c.Input()
	if err != nil || v != 9 {
		t.Errorf("Input = %d, %v; want 9, nil", v, err)
	}
	if _, ok, err := c.TryInput(); ok || err != nil {
		t.Errorf("TryInput = ok %v, err %v; want false, nil", ok, err)
	}
}

func TestChannel_RunEngine(t *testing.T) {
	in := make(chan int64, 2)
	out := make(chan int64, 2)
	in <- 3
	in <- 4

	// Reads two values and outputs their product.
	program := []int64{3, 11, 3, 12, 2, 11, 12, 13, 4, 13, 99, 0, 0, 0}
	c := NewChannel(in, out)
	if err := Run(New(program), c); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if v := <-out; v != 12 {
		t.Errorf("output = %d, want 12", v)
	}
	if v, ok := c.Last(); !ok || v != 12 {
		t.Errorf("Last = %d, %v; want 12, true", v, ok)
	}
}
