package session

// Result carries either a value or the reason an operation failed. It is
// used on the boolean-returning boundary so callers can still log the cause.
type Result[T any] struct {
	Value T
	Err   error
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// OK reports whether the operation succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Reason returns the failure message, or "" on success.
func (r Result[T]) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
