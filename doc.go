// Package cognograph provides the automation engine for a spatial-canvas
// workspace: user-defined rules attached to graph nodes react to mutations
// of a live node/edge graph and to movement across spatial regions.
//
// # Architecture
//
// The engine observes a stream of graph mutation events and turns them into
// rule executions:
//
//	graph mutation -> Event -> trigger matching -> debounce -> validation -> execution
//
// Components, leaf first:
//
//   - geo: axis-aligned rectangle math (overlap, padding, center distance)
//   - types/graph: graph snapshot types and directed traversal helpers
//   - types/rule: rule, trigger, condition and event definitions plus the
//     collaborator interfaces (graph store, step executor)
//   - region: named rectangular regions, derived node membership, and
//     auto-growing bounds
//   - automation/expression: condition evaluation (field path + operator +
//     literal) with a cached regex compiler
//   - automation: the engine itself, combining the trigger matcher, the
//     debounced execution scheduler with cycle/depth safety, and the
//     enabled-rule registry
//   - natsbridge: optional NATS transport feeding graph deltas into the
//     engine and publishing run records back out
//
// # Safety model
//
// The engine guarantees it cannot loop forever or re-enter itself
// pathologically: an execution stack detects trigger cycles, a fixed depth
// cap bounds action-triggers-action fan-out, and per-(rule, source node)
// debounce timers coalesce rapid edits. All runtime state (timers, stack,
// proximity memory) is transient and owned by a single Engine instance;
// only rule definitions and region definitions are durable.
//
// External collaborators, the graph data store and the step-execution
// interpreter, are consumed through interfaces in types/rule, so multiple
// independent engine instances can be constructed in tests with fakes and a
// mock clock.
package cognograph
