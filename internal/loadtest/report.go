package loadtest

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

// Stats collects per-endpoint latencies. Safe for concurrent use.
type Stats struct {
	mu        sync.Mutex
	latencies map[string][]time.Duration
	failures  map[string]int
}

func NewStats() *Stats {
	return &Stats{
		latencies: make(map[string][]time.Duration),
		failures:  make(map[string]int),
	}
}

// Record adds one request outcome
func (s *Stats) Record(endpoint string, d time.Duration, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies[endpoint] = append(s.latencies[endpoint], d)
	if !ok {
		s.failures[endpoint]++
	}
}

// EndpointReport summarizes one endpoint
type EndpointReport struct {
	Endpoint string
	Requests int
	Failures int
	P50      time.Duration
	P90      time.Duration
	P99      time.Duration
	Max      time.Duration
}

// Report is the outcome of a run
type Report struct {
	Elapsed   time.Duration
	Endpoints []EndpointReport
}

// Requests returns the total request count
func (r *Report) Requests() int {
	n := 0
	for _, e := range r.Endpoints {
		n += e.Requests
	}
	return n
}

// Endpoint returns the summary for name, if any requests hit it
func (r *Report) Endpoint(name string) (EndpointReport, bool) {
	for _, e := range r.Endpoints {
		if e.Endpoint == name {
			return e, true
		}
	}
	return EndpointReport{}, false
}

// Report snapshots the collected stats, sorted by endpoint name
func (s *Stats) Report(elapsed time.Duration) *Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &Report{Elapsed: elapsed}
	for endpoint, lat := range s.latencies {
		sorted := append([]time.Duration(nil), lat...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		report.Endpoints = append(report.Endpoints, EndpointReport{
			Endpoint: endpoint,
			Requests: len(sorted),
			Failures: s.failures[endpoint],
			P50:      percentile(sorted, 50),
			P90:      percentile(sorted, 90),
			P99:      percentile(sorted, 99),
			Max:      sorted[len(sorted)-1],
		})
	}
	sort.Slice(report.Endpoints, func(i, j int) bool {
		return report.Endpoints[i].Endpoint < report.Endpoints[j].Endpoint
	})
	return report
}

// percentile uses nearest-rank on an ascending slice
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

// Print writes a colored table of the report to w
func (r *Report) Print(w io.Writer) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	bold.Fprintf(w, "\nLoad test finished in %s (%d requests)\n\n", r.Elapsed.Round(time.Millisecond), r.Requests())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tREQS\tFAIL\tP50\tP90\tP99\tMAX")
	for _, e := range r.Endpoints {
		fail := green.Sprint(e.Failures)
		if e.Failures > 0 {
			fail = red.Sprint(e.Failures)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Endpoint, e.Requests, fail,
			e.P50.Round(time.Microsecond), e.P90.Round(time.Microsecond),
			e.P99.Round(time.Microsecond), e.Max.Round(time.Microsecond),
		)
	}
	tw.Flush()
}
