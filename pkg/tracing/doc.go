// Package tracing wraps OpenTelemetry so the kernel can record one span per
// system call without depending on the SDK directly. A Tracer built by Noop
// records nothing.
package tracing
