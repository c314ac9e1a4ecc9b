package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chazu/intcode/manifest"
	"github.com/chazu/intcode/server"
	"github.com/chazu/intcode/store"
	"github.com/chazu/intcode/vm"
)

// serve runs the machine server until ctx is cancelled.
func serve(ctx context.Context, o options) error {
	cfg := server.ConfigFromEnv()
	if o.port > 0 {
		cfg.Addr = fmt.Sprintf(":%d", o.port)
	}

	var opts []server.ServerOption
	if o.db != "" {
		st, err := store.Open(o.db)
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, server.WithStore(st))
	}

	srv := server.New(cfg, opts...)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		srv.Stop()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runRemote executes the program, or resumes a snapshot, on a machine
// server.
func runRemote(ctx context.Context, o options, args []string, stdin io.Reader, stdout io.Writer, m *manifest.Manifest) error {
	var (
		caller server.Caller
		err    error
	)
	switch o.transport {
	case "connect":
		caller = server.NewConnectCaller(http.DefaultClient, "http://"+o.remote)
	case "grpc":
		if caller, err = server.DialGRPC(o.remote); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown transport %q (want connect or grpc)", o.transport)
	}
	defer caller.Close()
	client := server.NewClient(caller)

	var (
		session  string
		awaiting bool
	)
	if o.resume != "" {
		session, awaiting, err = client.Restore(ctx, o.resume)
	} else {
		var program []int64
		if program, err = loadProgram(args, m); err != nil {
			return err
		}
		session, err = client.Start(ctx, program)
	}
	if err != nil {
		return err
	}
	defer client.Close(context.Background(), session)

	backend, buf, err := newIO(o, stdin, stdout)
	if err != nil {
		return err
	}
	err = client.Drive(ctx, session, backend, awaiting)
	if err != nil && !(errors.Is(err, vm.ErrInputExhausted) && o.save != "") {
		return err
	}
	if buf != nil {
		for _, v := range buf.Outputs() {
			fmt.Fprintln(stdout, v)
		}
	}
	if o.save != "" {
		id, err := client.Save(ctx, session, o.save)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "saved %s as %s\n", o.save, id)
	}
	return nil
}
