package rest

import (
	"context"
	nethttp "net/http"

	"golang.org/x/sync/errgroup"
)

// Future is the handle of an operation running on its own goroutine
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// runAsync starts fn on a new goroutine. fn receives a context detached from
// ctx's cancellation: abandoning or cancelling the wait does not stop the
// operation.
func runAsync[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	detached := context.WithoutCancel(ctx)
	go func() {
		defer close(f.done)
		f.value, f.err = fn(detached)
	}()
	return f
}

// Done is closed once the result is available
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the operation completes and returns its result
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// Await waits for the result or for ctx to be done, whichever comes first.
// Returning early leaves the operation running.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AwaitAll waits for every future and returns the first error encountered
func AwaitAll[T any](ctx context.Context, futures ...*Future[T]) ([]T, error) {
	results := make([]T, len(futures))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range futures {
		g.Go(func() error {
			v, err := f.Await(gctx)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// AsyncDo runs Do on a new goroutine
func (s *Service) AsyncDo(ctx context.Context, req *Request, strategy RetryStrategy) *Future[*Response] {
	return runAsync(ctx, func(ctx context.Context) (*Response, error) {
		return s.Do(ctx, req, strategy)
	})
}

// AsyncGet runs a single GET attempt on a new goroutine
func (s *Service) AsyncGet(ctx context.Context, path string, headers Headers) *Future[*Response] {
	return s.AsyncDo(ctx, &Request{Method: nethttp.MethodGet, Path: path, Headers: headers}, nil)
}

// AsyncHead runs a single HEAD attempt on a new goroutine
func (s *Service) AsyncHead(ctx context.Context, path string, headers Headers) *Future[*Response] {
	return s.AsyncDo(ctx, &Request{Method: nethttp.MethodHead, Path: path, Headers: headers}, nil)
}

// AsyncPost runs a single POST attempt on a new goroutine
func (s *Service) AsyncPost(ctx context.Context, path string, body any, headers Headers) *Future[*Response] {
	return s.AsyncDo(ctx, &Request{Method: nethttp.MethodPost, Path: path, Body: body, Headers: headers}, nil)
}

// AsyncPut runs a single PUT attempt on a new goroutine
func (s *Service) AsyncPut(ctx context.Context, path string, body any, headers Headers) *Future[*Response] {
	return s.AsyncDo(ctx, &Request{Method: nethttp.MethodPut, Path: path, Body: body, Headers: headers}, nil)
}

// AsyncPatch runs a single PATCH attempt on a new goroutine
func (s *Service) AsyncPatch(ctx context.Context, path string, body any, headers Headers) *Future[*Response] {
	return s.AsyncDo(ctx, &Request{Method: nethttp.MethodPatch, Path: path, Body: body, Headers: headers}, nil)
}

// AsyncDelete runs a single DELETE attempt on a new goroutine
func (s *Service) AsyncDelete(ctx context.Context, path string, body any, headers Headers) *Future[*Response] {
	return s.AsyncDo(ctx, &Request{Method: nethttp.MethodDelete, Path: path, Body: body, Headers: headers}, nil)
}
