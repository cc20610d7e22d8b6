// Command profile CPU-profiles matching.Engine.Submit under the same
// concurrent load cmd/benchmark generates, writing cpu.prof for
// `go tool pprof`.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync/atomic"
	"time"

	"ledger-exchange/domain"
	"ledger-exchange/matching"
	"ledger-exchange/store"
)

func main() {
	cpuFile, err := os.Create("cpu.prof")
	if err != nil {
		panic(err)
	}
	defer cpuFile.Close()

	if err := pprof.StartCPUProfile(cpuFile); err != nil {
		panic(err)
	}
	defer pprof.StopCPUProfile()

	fmt.Println("=== profiling start ===")
	fmt.Println("writing CPU profile to cpu.prof")

	st, err := store.Open(":memory:")
	if err != nil {
		fmt.Println("open store:", err)
		return
	}
	ctx := context.Background()
	if err := st.Bootstrap(ctx); err != nil {
		fmt.Println("bootstrap store:", err)
		return
	}
	engine := matching.New(st)

	duration := 10 * time.Second
	numCPU := runtime.NumCPU()
	numWorkers := numCPU - 1
	if numWorkers < 1 {
		numWorkers = 1
	}

	var (
		orderCount atomic.Int64
		tradeCount atomic.Int64
	)

	fmt.Printf("cpu cores: %d\n", numCPU)
	fmt.Printf("workers: %d\n", numWorkers)
	fmt.Printf("duration: %v\n\n", duration)

	startTime := time.Now()
	stopChan := make(chan struct{})

	for w := 0; w < numWorkers; w++ {
		go func(workerID int) {
			orderID := int64(0)
			for {
				select {
				case <-stopChan:
					return
				default:
				}

				side := domain.SideBuy
				if orderID%2 != 0 {
					side = domain.SideSell
				}
				price := int64(50000 + orderID%200)
				participantID := int64(workerID + 1)

				result, err := engine.Submit(ctx, participantID, side, price, 1, domain.GTC)
				if err == nil {
					tradeCount.Add(int64(len(result.Fills)))
				}
				orderCount.Add(1)
				orderID++
			}
		}(w)
	}

	time.Sleep(duration)
	close(stopChan)
	time.Sleep(500 * time.Millisecond)

	elapsed := time.Since(startTime)
	totalOrders := orderCount.Load()
	totalTrades := tradeCount.Load()

	fmt.Println("\n=== results ===")
	fmt.Printf("total orders: %d\n", totalOrders)
	fmt.Printf("total fills:  %d\n", totalTrades)
	fmt.Printf("order QPS: %.0f orders/sec\n", float64(totalOrders)/elapsed.Seconds())
	fmt.Printf("fill rate: %.0f fills/sec\n", float64(totalTrades)/elapsed.Seconds())

	fmt.Println("\nanalyze with: go tool pprof -http=:8080 cpu.prof")
}
