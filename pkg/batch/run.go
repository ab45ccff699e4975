package batch

import (
	"context"
	"fmt"
	"sync"
)

// Result holds the outcome of processing one input.
type Result[R any] struct {
	Value R
	Err   error
}

// RunOrdered applies fn to every input using at most workers goroutines.
//
// The returned slice has one entry per input at the input's index;
// completion order never matters. A failing or panicking call only affects
// its own entry. Inputs not yet started when ctx is cancelled get ctx.Err().
func RunOrdered[T, R any](ctx context.Context, inputs []T, workers int, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(inputs))
	if len(inputs) == 0 {
		return results
	}
	workers = max(1, min(workers, len(inputs)))

	type workItem struct {
		index int
		input T
	}
	workChan := make(chan workItem, len(inputs))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workChan {
				if err := ctx.Err(); err != nil {
					results[item.index] = Result[R]{Err: err}
					continue
				}
				results[item.index] = call(ctx, fn, item.input)
			}
		}()
	}

	for i, input := range inputs {
		workChan <- workItem{index: i, input: input}
	}
	close(workChan)

	wg.Wait()
	return results
}

func call[T, R any](ctx context.Context, fn func(context.Context, T) (R, error), input T) (res Result[R]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[R]{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err := fn(ctx, input)
	return Result[R]{Value: v, Err: err}
}
