package lock

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/andy-ce-taylor/reslock/cmd/util"
	"github.com/andy-ce-taylor/reslock/lib/reslock"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Contention benchmark for a lock store",
		Long:    util.WrapString("Run an in-process contention benchmark: several goroutines repeatedly acquire and release locks over the configured store and the acquisition latency distribution is reported."),
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfThreads    = 10
	perfIterations = 100
	perfResources  = 1
	perfHold       = time.Millisecond
	perfDump       = false
)

func init() {
	// add flags
	key := "threads"
	perfCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines contending for locks"))
	key = "iterations"
	perfCmd.Flags().Int(key, 100, util.WrapString("Acquire/release cycles per goroutine"))
	key = "resources"
	perfCmd.Flags().Int(key, 1, util.WrapString("How many distinct resource names to spread the contention over"))
	key = "hold"
	perfCmd.Flags().Duration(key, time.Millisecond, util.WrapString("How long each goroutine holds an acquired lock"))
	key = "dump-metrics"
	perfCmd.Flags().Bool(key, false, util.WrapString("Print the process lock counters in Prometheus format after the run"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfThreads = viper.GetInt("threads")
	perfIterations = viper.GetInt("iterations")
	perfResources = viper.GetInt("resources")
	perfHold = viper.GetDuration("hold")
	perfDump = viper.GetBool("dump-metrics")

	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	cfg := util.GetLockConfig()

	fmt.Println("Contention benchmark for a reslock lock store")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Store:       %s\n", cfg.StoreDir)
	fmt.Printf("MaxPause:    %v\n", cfg.MaxPause)
	fmt.Printf("MaxAttempts: %d\n", cfg.MaxAttempts)
	fmt.Printf("MaxHold:     %v\n", cfg.MaxHold)
	fmt.Printf("Threads:     %d\n", perfThreads)
	fmt.Printf("Iterations:  %d\n", perfIterations)
	fmt.Printf("Resources:   %d\n", perfResources)
	fmt.Println()

	acquireTimer := gometrics.NewTimer()
	var timeouts gometrics.Counter = gometrics.NewCounter()

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < perfThreads; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			// one locker per goroutine, mirroring one-locker-per-process use
			locker, err := reslock.NewOS(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "thread %d: %v\n", id, err)
				return
			}
			defer locker.Close()

			for n := 0; n < perfIterations; n++ {
				resource := fmt.Sprintf("__perf-%d", (id+n)%perfResources)

				began := time.Now()
				h, ok := locker.Lock(resource)
				if !ok {
					timeouts.Inc(1)
					continue
				}
				acquireTimer.UpdateSince(began)

				time.Sleep(perfHold)
				locker.Unlock(h)
			}
		}(i)
	}

	wg.Wait()
	total := time.Since(start)

	ps := acquireTimer.Percentiles([]float64{0.5, 0.95, 0.99})
	fmt.Println("Results:")
	fmt.Printf("Wall time:   %v\n", total.Round(time.Millisecond))
	fmt.Printf("Acquired:    %d\n", acquireTimer.Count())
	fmt.Printf("Timeouts:    %d\n", timeouts.Count())
	fmt.Printf("Mean:        %v\n", time.Duration(acquireTimer.Mean()).Round(time.Microsecond))
	fmt.Printf("p50:         %v\n", time.Duration(ps[0]).Round(time.Microsecond))
	fmt.Printf("p95:         %v\n", time.Duration(ps[1]).Round(time.Microsecond))
	fmt.Printf("p99:         %v\n", time.Duration(ps[2]).Round(time.Microsecond))
	fmt.Printf("Max:         %v\n", time.Duration(acquireTimer.Max()).Round(time.Microsecond))

	if perfDump {
		fmt.Println()
		metrics.WritePrometheus(os.Stdout, false)
	}
	return nil
}
