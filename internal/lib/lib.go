// Package lib groups supporting code that does not fit strictly into the
// other layers: Server-Sent Events encoding (sse) and background
// maintenance jobs on Redis/Asynq (job).
package lib
