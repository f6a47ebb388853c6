package raster

import (
	"context"
	"fmt"
	"os"
	"time"
)

// DefaultLoadDeadline bounds a raster file read.
const DefaultLoadDeadline = 5 * time.Second

// readFileWithDeadline reads path, failing with a timeout error if the
// read has not completed by deadline. Running the read in its own
// goroutine keeps a slow disk from leaking past the deadline into the
// caller.
func readFileWithDeadline(ctx context.Context, path string, deadline time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(path)
		done <- result{data: data, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("raster: read %s: %w", path, r.err)
		}
		return r.data, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("raster: read %s: %w", path, ctx.Err())
	}
}
