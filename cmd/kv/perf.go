package kv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/pxKV/cmd/util"
	"github.com/ValentinKolb/pxKV/lib/common"
	"github.com/ValentinKolb/pxKV/lib/session"
	"github.com/google/uuid"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Measures the latency of session operations against the configured store",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfThreads   = 10
	perfOps       = 1000
	perfKeySpread = 100
	perfValueSize = 64
	perfSkip      = make([]string, 0)
)

// perfTest is one benchmark; op is called with the worker's op counter
type perfTest struct {
	name string
	// ops overrides perfOps for expensive tests
	ops   int
	setup func(keys []string) error
	op    func(keys []string, i int) *session.Promise
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines issuing operations"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of operations per goroutine and test"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "value-size"
	perfTestCmd.Flags().Int(key, 64, util.WrapString("Size of the values written (in bytes)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfThreads = viper.GetInt("threads")
	perfOps = viper.GetInt("ops")
	perfKeySpread = viper.GetInt("keys")
	perfValueSize = viper.GetInt("value-size")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfThreads < 1 || perfOps < 1 || perfKeySpread < 1 {
		return fmt.Errorf("threads, ops and keys must be positive")
	}
	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Performance testing tool for pxKV sessions")
	fmt.Fprintln(out, kvConfig.String())
	fmt.Fprintf(out, "Threads: %d, ops per thread: %d, keys: %d\n\n", perfThreads, perfOps, perfKeySpread)

	// every run gets its own key space so parallel runs do not interfere
	prefix := "__perf-" + uuid.NewString()
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s:%d", prefix, i)
	}
	value := strings.Repeat("x", perfValueSize)
	doc := map[string]any{"name": "perf", "value": value, "n": 42}

	fill := func(keys []string) error {
		for _, k := range keys {
			if _, err := kvSession.Do("set", k, value).Wait(); err != nil {
				return err
			}
		}
		return nil
	}

	tests := []perfTest{
		{name: "set", op: func(keys []string, i int) *session.Promise {
			return kvSession.Do("set", keys[i%len(keys)], value)
		}},
		{name: "get", setup: fill, op: func(keys []string, i int) *session.Promise {
			return kvSession.Do("get", keys[i%len(keys)])
		}},
		{name: "getdefault", op: func(keys []string, i int) *session.Promise {
			return kvSession.GetDefault(keys[i%len(keys)]+":missing", "default", nil)
		}},
		{name: "setjson", op: func(keys []string, i int) *session.Promise {
			return kvSession.SetJSON(keys[i%len(keys)], doc, nil)
		}},
		{name: "getjson", op: func(keys []string, i int) *session.Promise {
			return kvSession.GetJSON(keys[i%len(keys)], nil)
		}},
		{name: "multi", op: func(keys []string, i int) *session.Promise {
			k := keys[i%len(keys)]
			return kvSession.Multi([]any{"set", k, value}, []any{"get", k}).Exec()
		}},
		{name: "search", ops: 10, setup: fill, op: func([]string, int) *session.Promise {
			return kvSession.GetSearch(prefix+":*", nil, nil)
		}},
	}

	registry := gometrics.NewRegistry()
	for _, test := range tests {
		if shouldSkip(test.name) {
			fmt.Fprintf(out, "%-12sskipped\n", test.name)
			continue
		}
		if test.setup != nil {
			if err := test.setup(keys); err != nil {
				return fmt.Errorf("(%s) setup failed: %w", test.name, err)
			}
		}

		timer := gometrics.GetOrRegisterTimer(test.name, registry)
		errs := gometrics.GetOrRegisterCounter(test.name+".errors", registry)
		ops := perfOps
		if test.ops > 0 && test.ops < ops {
			ops = test.ops
		}

		var wg sync.WaitGroup
		wg.Add(perfThreads)
		for w := 0; w < perfThreads; w++ {
			go func(w int) {
				defer wg.Done()
				for i := 0; i < ops; i++ {
					start := time.Now()
					_, err := test.op(keys, w*ops+i).Wait()
					timer.UpdateSince(start)
					if err != nil {
						errs.Inc(1)
						Logger.Warningf("(%s) operation failed: %v", test.name, err)
					}
				}
			}(w)
		}
		wg.Wait()

		printResult(out, test.name, timer.Snapshot(), errs.Count())
	}

	// cleanup
	if n, err := kvSession.DelSearch(prefix+":*", nil).Wait(); err != nil {
		Logger.Warningf("cleanup failed: %v", err)
	} else {
		fmt.Fprintf(out, "\nremoved %v test keys\n", n)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, registry, kvConfig); err != nil {
			return err
		}
		fmt.Fprintf(out, "results written to %s\n", csvPath)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(out io.Writer, test string, t gometrics.Timer, errs int64) {
	p := t.Percentiles([]float64{0.5, 0.99})
	fmt.Fprintf(out, "%-12s%8d ops  mean %-10s p50 %-10s p99 %-10s max %-10s %.0f ops/sec  errors %d\n",
		test, t.Count(),
		time.Duration(t.Mean()), time.Duration(p[0]), time.Duration(p[1]), time.Duration(t.Max()),
		t.RateMean(), errs)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, registry gometrics.Registry, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "Count", "MeanNs", "P50Ns", "P99Ns", "MaxNs", "OpsPerSec",
		"Backend", "Endpoints", "TimeoutSec", "Threads", "Keys", "ValueSize",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	var names []string
	registry.Each(func(name string, m interface{}) {
		if _, ok := m.(gometrics.Timer); ok {
			names = append(names, name)
		}
	})
	sort.Strings(names)

	for _, name := range names {
		t := registry.Get(name).(gometrics.Timer).Snapshot()
		p := t.Percentiles([]float64{0.5, 0.99})
		row := []string{
			name,
			strconv.FormatInt(t.Count(), 10),
			fmt.Sprintf("%.0f", t.Mean()),
			fmt.Sprintf("%.0f", p[0]),
			fmt.Sprintf("%.0f", p[1]),
			strconv.FormatInt(t.Max(), 10),
			fmt.Sprintf("%.0f", t.RateMean()),
			string(config.Backend),
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(perfThreads),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfValueSize),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", name, err)
		}
	}

	return nil
}
