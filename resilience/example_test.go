package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/recallstack/recall-go/resilience"
)

func Example() {
	layer := resilience.NewFromPreset(resilience.PresetDefault)
	defer layer.StopQueueProcessor()

	err := layer.Execute(context.Background(), "memories:recall", func(ctx context.Context) error {
		// Call the backend here.
		return nil
	})
	fmt.Println(err)
	// Output: <nil>
}

func Example_typedResult() {
	layer := resilience.NewFromPreset(resilience.PresetDefault)
	defer layer.StopQueueProcessor()

	memories, err := resilience.Do(context.Background(), layer, "memories:search",
		func(ctx context.Context) ([]string, error) {
			return []string{"prefers dark mode"}, nil
		})
	fmt.Println(memories, err)
	// Output: [prefers dark mode] <nil>
}

func ExampleLayer_ExecuteWithRetry() {
	layer := resilience.NewFromPreset(resilience.PresetDefault)
	defer layer.StopQueueProcessor()

	attempts := 0
	err := layer.ExecuteWithRetry(context.Background(), "memories:remember",
		func(ctx context.Context) error {
			attempts++
			if attempts < 2 {
				return errors.New("connection refused")
			}
			return nil
		}, 3, time.Millisecond)
	fmt.Println(err, attempts)
	// Output: <nil> 2
}

func ExampleIsBackpressure() {
	layer := resilience.New(resilience.Config{
		RateLimiter: resilience.TokenBucketConfig{
			BucketSize: 1,
			RefillRate: 0.1,
			MaxWait:    time.Millisecond,
		},
	})
	defer layer.StopQueueProcessor()

	ctx := context.Background()
	noop := func(ctx context.Context) error { return nil }

	_ = layer.Execute(ctx, "memories:recall", noop)
	err := layer.Execute(ctx, "memories:recall", noop)

	fmt.Println(resilience.IsBackpressure(err))
	// Output: true
}

func ExampleConfigForPlan() {
	cfg := resilience.ConfigForPlan(resilience.PlanStarter)
	fmt.Println(cfg.Concurrency.MaxConcurrent)
	// Output: 2
}
