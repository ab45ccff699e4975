// Package batch splits work lists into chunks and processes them with
// bounded parallelism while keeping results in submission order.
package batch

import "fmt"

// Split partitions items into consecutive chunks of at most size elements.
//
// Chunks never overlap and keep the input order. An empty input yields a
// single empty chunk so that callers always get one chunk result back.
func Split[T any](items []T, size int) ([][]T, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be > 0, not %d", size)
	}
	if len(items) == 0 {
		return [][]T{{}}, nil
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks, nil
}
