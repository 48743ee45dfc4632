// Package logx configures tasksched's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller) and on stderr,
//     so command output on stdout stays clean
//   - File output JSON-structured
package logx
