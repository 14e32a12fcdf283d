// Package router implements the per-frame dispatch pipeline (auth gate,
// rate gate, system/auth handling, pool routing, round-robin endpoint
// selection) plus the route table and health-check machinery it reads from.
package router
