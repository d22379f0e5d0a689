package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/torosent/paysim/internal/metrics"
	"github.com/torosent/paysim/internal/threshold"
)

const rule = "=================================================="

// RunInfo describes a run before it starts.
type RunInfo struct {
	RunID          string
	Target         string
	TotalRequests  int
	Mode           string
	MaxConcurrency int
	Seed           int64
}

// Document is the machine-readable report: the run report plus threshold results.
type Document struct {
	metrics.Report `yaml:",inline"`
	Thresholds     []threshold.Result `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// PrintHeader outputs the run banner.
func PrintHeader(w io.Writer, info RunInfo) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Payment API Simulation")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Run ID:           %s\n", info.RunID)
	fmt.Fprintf(w, "API URL:          %s\n", info.Target)
	fmt.Fprintf(w, "Requests:         %d\n", info.TotalRequests)
	fmt.Fprintf(w, "Mode:             %s\n", info.Mode)
	fmt.Fprintf(w, "Max Concurrent:   %d\n", info.MaxConcurrency)
	fmt.Fprintf(w, "Seed:             %d\n", info.Seed)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r metrics.Report, results []threshold.Result) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Simulation Statistics")
	fmt.Fprintln(w, rule)
	if r.Aborted {
		fmt.Fprintf(w, "Run aborted:      %s\n", r.AbortReason)
	}
	if r.Interrupted {
		fmt.Fprintln(w, "Interrupted:      yes (partial results)")
	}
	fmt.Fprintf(w, "Mode:             %s\n", r.Mode)
	fmt.Fprintf(w, "Seed:             %d\n", r.Seed)
	fmt.Fprintf(w, "Duration:         %.2fs\n", r.ElapsedSeconds)
	fmt.Fprintf(w, "Total Requests:   %d\n", r.TotalRequests)
	fmt.Fprintf(w, "Successful:       %d\n", r.SuccessCount)
	fmt.Fprintf(w, "Failed:           %d\n", r.Unsuccessful())
	if r.Unsuccessful() > 0 {
		fmt.Fprintf(w, "  Rejected:       %d\n", r.FailedCount)
		fmt.Fprintf(w, "  Timeouts:       %d\n", r.TimeoutCount)
		fmt.Fprintf(w, "  Errors:         %d\n", r.ErrorCount)
	}
	fmt.Fprintf(w, "Success Rate:     %.2f%%\n", r.SuccessRate*100)
	fmt.Fprintf(w, "Total Amount:     %s\n", formatAmount(r.TotalAmount))
	writeCurrencies(w, r.AmountByCurrency)
	if r.TotalRequests > 0 && r.ElapsedSeconds > 0 {
		fmt.Fprintf(w, "Throughput:       %.2f req/s\n", r.ThroughputPerSecond)
	}
	if len(r.Cycles) > 0 {
		fmt.Fprintf(w, "Cycles:           %d\n", len(r.Cycles))
	}

	if d := r.Durations; d != nil {
		fmt.Fprintln(w, "\nResponse Times:")
		fmt.Fprintf(w, "  Average:        %.3fs\n", d.Avg)
		fmt.Fprintf(w, "  Min:            %.3fs\n", d.Min)
		fmt.Fprintf(w, "  Max:            %.3fs\n", d.Max)
		fmt.Fprintf(w, "  P95:            %.3fs\n", d.P95)
		fmt.Fprintf(w, "  P50/P90/P99:    %.3fs / %.3fs / %.3fs\n", d.P50, d.P90, d.P99)
	}

	if len(r.StatusBuckets) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		writeStatusBuckets(w, r.StatusBuckets, "  ")
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		labels := make([]string, 0, len(r.Errors))
		for label := range r.Errors {
			labels = append(labels, label)
		}
		sort.Slice(labels, func(i, j int) bool {
			if r.Errors[labels[i]] != r.Errors[labels[j]] {
				return r.Errors[labels[i]] > r.Errors[labels[j]]
			}
			return labels[i] < labels[j]
		})
		for _, label := range labels {
			fmt.Fprintf(w, "  %s: %d\n", label, r.Errors[label])
		}
	}
	if len(results) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, res := range results {
			fmt.Fprintf(w, "  %s\n", res.Message)
		}
	}
	fmt.Fprintln(w, rule)
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, doc Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func writeStatusBuckets(w io.Writer, rows []metrics.StatusBucket, indent string) {
	for _, row := range rows {
		label := strings.ToUpper(string(row.Status))
		if row.Code != 0 {
			label += " " + strconv.Itoa(row.Code)
		}
		fmt.Fprintf(w, "%s%s: %d\n", indent, label, row.Count)
	}
}

func writeCurrencies(w io.Writer, amounts map[string]float64) {
	if len(amounts) == 0 {
		return
	}
	currencies := make([]string, 0, len(amounts))
	for c := range amounts {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	for _, c := range currencies {
		fmt.Fprintf(w, "  %s:            %s\n", c, formatAmount(amounts[c]))
	}
}

// formatAmount renders v with two decimals and thousands separators.
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, ch := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	return sign + b.String() + "." + frac
}
