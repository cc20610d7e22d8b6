// Command benchmark load-tests matching.Engine.Submit against an
// in-memory store, the same way the teacher's original benchmark
// load-tested its channel/ring-buffer engine directly — except here every
// submit is a full ACID store transaction, so this also measures the cost
// of the single-writer serialization spec.md §5 requires.
package main

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"ledger-exchange/domain"
	"ledger-exchange/matching"
	"ledger-exchange/store"
)

func main() {
	fmt.Println("=== exchange matching engine load test ===")

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

	testDuration := 5 * time.Second
	numCPU := runtime.NumCPU()
	numWorkers := numCPU - 1
	if numWorkers < 1 {
		numWorkers = 1
	}

	var (
		orderCount atomic.Int64
		tradeCount atomic.Int64
	)

	fmt.Printf("starting load test...\n")
	fmt.Printf("cpu cores: %d\n", numCPU)
	fmt.Printf("workers: %d\n", numWorkers)
	fmt.Printf("duration: %v\n\n", testDuration)

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

	ticker := time.NewTicker(1 * time.Second)
	go func() {
		for range ticker.C {
			elapsed := time.Since(startTime)
			orders := orderCount.Load()
			trades := tradeCount.Load()
			fmt.Printf("[%.0fs] orders: %d (%.0f/s) | fills: %d (%.0f/s)\n",
				elapsed.Seconds(), orders, float64(orders)/elapsed.Seconds(), trades, float64(trades)/elapsed.Seconds())
		}
	}()

	time.Sleep(testDuration)
	close(stopChan)
	ticker.Stop()

	elapsed := time.Since(startTime)
	totalOrders := orderCount.Load()
	totalTrades := tradeCount.Load()

	fmt.Println("\n=== results ===")
	fmt.Printf("duration:        %v\n", elapsed)
	fmt.Printf("total orders:    %d\n", totalOrders)
	fmt.Printf("total fills:     %d\n", totalTrades)
	fmt.Printf("order throughput: %.0f orders/sec\n", float64(totalOrders)/elapsed.Seconds())
	fmt.Printf("fill throughput:  %.0f fills/sec\n", float64(totalTrades)/elapsed.Seconds())
}
