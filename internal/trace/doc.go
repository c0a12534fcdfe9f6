// Package trace records what the pcb tool is doing: which files are being
// parsed, which functions are being lowered and how long each step takes.
//
// Enable it from the command line:
//
//	pcb build --trace=- --trace-level=phase prog.pcb
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelError: failures only
//   - LevelPhase: driver and pass boundaries
//   - LevelDetail: per-function events
//   - LevelDebug: everything, including per-value events
//
// # Propagation
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "lower", 0)
//	defer span.End("")
package trace
