// Package logger wraps zap with a global sugared logger for the CLI:
//   - a console encoder writing to standard error, so standard output
//     stays reserved for command results,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - convenience functions (Infof, WarnKV, etc.).
//
// Every step of the appcast run receives a context and logs through it.
package logger
