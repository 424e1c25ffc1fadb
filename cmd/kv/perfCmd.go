package kv

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dLayer/cmd/util"
	"github.com/ValentinKolb/dLayer/lib/session"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for overlay chains",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix   = "__perf"
	perfNumThreads  = 10
	perfKeySpread   = 100
	perfDepth       = 4
	perfCommitBatch = 100
	perfSkip        = make([]string, 0)

	// latency timers, one per test
	perfRegistry = gometrics.NewRegistry()
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. write,read)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the parallel read benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "depth"
	perfTestCmd.Flags().Int(key, 4, util.WrapString("How many sessions are stacked for the read and scan tests"))
	key = "commit-batch"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many writes each push-commit round stages"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfDepth = max(viper.GetInt("depth"), 1)
	perfCommitBatch = max(viper.GetInt("commit-batch"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for overlay chains")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetConfig().String())
	fmt.Printf("Threads: %d, Keys: %d, Depth: %d\n", perfNumThreads, perfKeySpread, perfDepth)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	getKey, iter := getKeys()

	// write into a pushed session
	results["write"] = benchmark("write", func(b *testing.B, timer gometrics.Timer) {
		stack := session.NewUndoStack(root)
		defer stack.Close()
		stack.Push()
		top := stack.Top()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			start := time.Now()
			_ = top.Write(getKey(i), session.Bytes("test"))
			timer.UpdateSince(start)
		}
	})

	// read through a chain of perfDepth sessions, every layer holds a share of the keys
	results["read"] = benchmark("read", func(b *testing.B, timer gometrics.Timer) {
		stack := stackedChain(iter)
		defer stack.Close()
		top := stack.Top()

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				_, _, _ = top.Read(getKey(counter))
				timer.UpdateSince(start)
				counter++
			}
		})
	})

	// merged iteration over the same chain
	results["scan"] = benchmark("scan", func(b *testing.B, timer gometrics.Timer) {
		stack := stackedChain(iter)
		defer stack.Close()
		top := stack.Top()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			start := time.Now()
			it, err := top.NewIterator(session.IterOptions{LowerBound: session.Bytes(perfKeyPrefix)})
			if err != nil {
				b.Fatal(err)
			}
			for ok := it.First(); ok; ok = it.Next() {
			}
			_ = it.Close()
			timer.UpdateSince(start)
		}
	})

	// push, stage perfCommitBatch writes, squash into the frame below
	results["squash"] = benchmark("squash", func(b *testing.B, timer gometrics.Timer) {
		stack := session.NewUndoStack(root)
		defer stack.Close()
		stack.Push()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			stack.Push()
			for j := 0; j < perfCommitBatch; j++ {
				_ = stack.Top().Write(getKey(i*perfCommitBatch+j), session.Bytes("test"))
			}
			start := time.Now()
			_ = stack.Squash()
			timer.UpdateSince(start)
		}
	})

	// push, stage perfCommitBatch writes, commit to the database
	results["push-commit"] = benchmark("push-commit", func(b *testing.B, timer gometrics.Timer) {
		stack := session.NewUndoStack(root)
		defer stack.Close()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			rev := stack.Push()
			for j := 0; j < perfCommitBatch; j++ {
				_ = stack.Top().Write(getKey(i*perfCommitBatch+j), session.Bytes("test"))
			}
			start := time.Now()
			if err := stack.Commit(rev); err != nil {
				log.Errorf("(push-commit) - error committing revision %d: %v", rev, err)
			}
			timer.UpdateSince(start)
		}
	})

	// cleanup
	cleanup := session.NewSession(root)
	iter(func(k session.Bytes) {
		_ = cleanup.Erase(k)
	})
	if err := cleanup.Commit(); err != nil {
		log.Errorf("error deleting perf keys: %v", err)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// benchmark runs fn unless skipped and prints the result with latency percentiles
func benchmark(test string, fn func(b *testing.B, timer gometrics.Timer)) testing.BenchmarkResult {
	timer := gometrics.GetOrRegisterTimer(test, perfRegistry)
	result := testing.Benchmark(func(b *testing.B) {
		if shouldSkip(test) {
			return
		}
		fn(b, timer)
	})
	printResult(test, result, timer)
	return result
}

// stackedChain pushes perfDepth sessions, each writing every depth-th key
func stackedChain(iter func(func(session.Bytes))) *session.UndoStack {
	stack := session.NewUndoStack(root)
	for d := 0; d < perfDepth; d++ {
		stack.Push()
		i := 0
		iter(func(k session.Bytes) {
			if i%perfDepth == d {
				_ = stack.Top().Write(k, session.Bytes("test"))
			}
			i++
		})
	}
	return stack
}

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys() (func(int) session.Bytes, func(func(session.Bytes))) {
	keys := make([]session.Bytes, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = session.Bytes(fmt.Sprintf("%s-%06d", perfKeyPrefix, i))
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) session.Bytes {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(session.Bytes)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult, timer gometrics.Timer) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	snapshot := timer.Snapshot()
	ps := snapshot.Percentiles([]float64{0.5, 0.99})

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	config := util.GetConfig()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Skipped",
		"Engine", "MaxBatch", "SyncWrites",
		"Threads", "Keys Count", "Depth", "CommitBatch",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"
		ps := gometrics.GetOrRegisterTimer(test, perfRegistry).Snapshot().Percentiles([]float64{0.5, 0.99})

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			skipped,
			string(config.Engine),
			strconv.Itoa(config.MaxBatch),
			strconv.FormatBool(config.SyncWrites),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfDepth),
			strconv.Itoa(perfCommitBatch),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
