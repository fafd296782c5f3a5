// Copyright (c) 2026 The robrix-core authors
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RequestTimeout bounds every homeserver-interacting handler invocation
// (SPEC_FULL §5).
const RequestTimeout = 60 * time.Second

// Handler processes one Request. It receives a context already bounded by
// RequestTimeout and must report failure through whatever channel the
// concrete Request type designates — returning an error here only reaches
// the dispatcher's own log line, never a caller.
type Handler func(ctx context.Context, req Request)

// Dispatcher is the Request Dispatcher (C3): a single submit(Request)
// operation backed by an unbounded queue and a consumer loop that spawns
// one goroutine per request, so a slow handler never blocks the next
// request's dispatch.
type Dispatcher struct {
	log     zerolog.Logger
	queue   *queue
	handler Handler
	done    chan struct{}
}

// New constructs a Dispatcher. handler is invoked once per request, type
// switching on the concrete Request type to decide what to do; it is
// called from a fresh goroutine for every request, so it may block freely.
func New(log zerolog.Logger, handler Handler) *Dispatcher {
	return &Dispatcher{
		log:     log.With().Str("component", "dispatch").Logger(),
		queue:   newQueue(),
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Submit enqueues req for processing. Non-blocking; returns no value.
// Calling Submit after Close is a programming error, matching the
// contract spec §4.1 states explicitly (a panic surfaces the bug loudly
// rather than silently dropping the request).
func (d *Dispatcher) Submit(req Request) {
	d.queue.push(req)
}

// Run is the consumer loop: it pops requests in FIFO arrival order and
// spawns an independent goroutine for each one, so handler completion
// order is not guaranteed even though dispatch order is. Run blocks until
// Close is called and returns once every in-flight handler has returned.
func (d *Dispatcher) Run() {
	var inFlight sync.WaitGroup
	defer func() {
		inFlight.Wait()
		close(d.done)
	}()
	for {
		req, ok := d.queue.pop()
		if !ok {
			return
		}
		inFlight.Add(1)
		go func(req Request) {
			defer inFlight.Done()
			d.invoke(req)
		}(req)
	}
}

// invoke runs handler for a single request with panic recovery, following
// the same recover-and-log idiom the underlying RPC event loop uses so one
// misbehaving handler cannot take down the dispatcher.
func (d *Dispatcher) invoke(req Request) {
	defer func() {
		if err := recover(); err != nil {
			logEvt := d.log.Error().Bytes(zerolog.ErrorStackFieldName, debug.Stack())
			if realErr, ok := err.(error); ok {
				logEvt = logEvt.Err(realErr)
			} else {
				logEvt = logEvt.Any(zerolog.ErrorFieldName, err)
			}
			logEvt.Str("request_type", fmt.Sprintf("%T", req)).Msg("Panic in request handler")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()
	d.handler(ctx, req)
}

// Close stops accepting new handler spawns once the queue drains and
// blocks until every in-flight handler goroutine has returned.
func (d *Dispatcher) Close() {
	d.queue.close()
	<-d.done
}
