// Package process runs the VirtualHere client binary.
//
// Two shapes of subprocess are handled here:
//
//   - Invoker runs one short-lived command (`vhclient -t LIST`) and returns
//     its combined stdout/stderr. A nonzero exit is not an error; only a
//     failure to spawn the process is reported, wrapped as ErrSpawnFailed.
//   - Manager supervises the long-running client daemon (`vhclient -n`):
//     start, restart on failure, optional health probe, graceful stop of the
//     whole process group.
//
// Example usage:
//
//	inv := process.NewInvoker(logger)
//	out, err := inv.Run(ctx, "/usr/local/bin/vhclientx86_64", "-t", "LIST")
//	if errors.Is(err, process.ErrSpawnFailed) {
//	    // binary missing or not executable
//	}
//
//	mgr := process.NewManager(process.DefaultConfig("vhclient", binary, []string{"-n"}))
//	mgr.SetLogger(logger)
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
