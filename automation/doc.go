// Package automation is the rule engine core. It receives graph mutation
// events, matches them against registered rule triggers, debounces matched
// pairs, evaluates guard conditions, and hands action steps to the external
// step executor.
//
// Safety model:
//   - Per-(rule, source node) debounce timers coalesce rapid repeated
//     events; a new event cancels and replaces the pending timer.
//   - A live execution stack detects trigger cycles: a rule whose id is
//     already on the stack is skipped with a warning, never an error.
//   - A fixed maximum stack depth bounds fan-out from action-triggers-action
//     chains regardless of cycle shape.
//   - The step executor call is wrapped in a panic recovery so a misbehaving
//     executor cannot leak a stack entry.
//
// The engine owns no goroutines of its own beyond debounce timer callbacks;
// schedule triggers fire from an externally driven Tick.
package automation
