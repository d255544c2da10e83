// Package prometheus renders authcore counters for Prometheus scrapes.
//
// [NewExporter] accepts an [authcore.Facade] and exposes an [http.Handler]
// that writes every counter in Prometheus text exposition format. Counter
// names are prefixed authcore_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate facade state.
package prometheus
