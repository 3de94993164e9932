package notifiers

import (
	"context"
	"errors"
	"fmt"
)

// ErrPending is returned by Completion.Err while the operation is still running.
var ErrPending = errors.New("send still in progress")

// Completion is the asynchronous result of a Send.
type Completion struct {
	done chan struct{}
	err  error
}

// Completed returns a Completion that is already resolved with err.
func Completed(err error) *Completion {
	c := &Completion{done: make(chan struct{}), err: err}
	close(c.done)
	return c
}

// Go runs fn in its own goroutine and resolves the returned Completion with its result.
// A panic in fn resolves the Completion with an error.
func Go(fn func() error) *Completion {
	c := &Completion{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		defer func() {
			if r := recover(); r != nil {
				c.err = fmt.Errorf("send panicked: %v", r)
			}
		}()
		c.err = fn()
	}()
	return c
}

// Done is closed once the operation has finished.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the result of the operation, or ErrPending if it has not finished.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return ErrPending
	}
}

// Wait blocks until the operation finishes or ctx is done.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
