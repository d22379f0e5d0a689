// Package exporter publishes client-side run metrics in the Prometheus
// exposition format so they can be compared with what the payment API
// itself reports.
package exporter
