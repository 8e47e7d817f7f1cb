// Package errs implements madctl's unified error model.
//
// Every operation that can fail across component boundaries returns an
// *errs.Error rather than a bare error: a fixed Category drives both
// recoverability policy and display, and an optional Context records
// which model/node/phase was involved.
//
//	if err := runner.Setup(ctx, node); err != nil {
//		e := errs.Runner("runner.Setup", "node setup failed",
//			errs.WithCause(err),
//			errs.WithContext(errs.Context{NodeID: node.Hostname}),
//		)
//		errs.Report(e)
//		return e
//	}
//
// SetReporter swaps the package-level Reporter; install a panel reporter
// for interactive CLI sessions and leave the default slog reporter for
// batch/CI invocations.
package errs
