package fn

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// UniqueBy keeps the first element for each key, preserving order.
func UniqueBy[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, v := range items {
		k := key(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ParMapResult runs f over items on at most workers goroutines and returns
// the results in input order, whatever order they finish in. Non-positive
// workers means one goroutine per item.
func ParMapResult[T, U any](items []T, workers int, f func(T) Result[U]) []Result[U] {
	out := make([]Result[U], len(items))
	if len(items) == 0 {
		return out
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}

	next := make(chan int)
	done := make(chan struct{})
	for w := 0; w < workers; w++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := range next {
				out[i] = guarded(f, items[i])
			}
		}()
	}
	for i := range items {
		next <- i
	}
	close(next)
	for w := 0; w < workers; w++ {
		<-done
	}
	return out
}

// guarded runs f, reporting a panic as an Err so a failing item cannot
// leave a zero (Ok) Result behind or kill the process from a worker.
func guarded[T, U any](f func(T) Result[U], v T) (r Result[U]) {
	defer func() {
		if p := recover(); p != nil {
			r = Errf[U]("fn: panic: %v", p)
		}
	}()
	return f(v)
}
