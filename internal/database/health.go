package database

import (
	"context"
	"sync"
	"time"
)

// Probe checks that one backing store answers.
type Probe func(ctx context.Context) error

// Readiness runs every probe concurrently under a shared timeout and reports
// "ok" or the error text per name. ready is false if any probe failed.
func Readiness(ctx context.Context, timeout time.Duration, probes map[string]Probe) (status map[string]string, ready bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	status = make(map[string]string, len(probes))
	ready = true

	for name, probe := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := probe(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status[name] = err.Error()
				ready = false
				return
			}
			status[name] = "ok"
		}()
	}
	wg.Wait()

	return status, ready
}
