// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2015 LabStack LLC and Echo contributors
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

// handlerRecord carries one handler's registration-site hash alongside its arity-tagged
// function: exactly one of fn/errFn is set (spec §9 "Middleware arity dispatch" — arity is
// recorded once at registration, never introspected again at call time).
type handlerRecord struct {
	hash  uint64
	fn    HandlerFunc
	errFn ErrorHandlerFunc
}

// newHandlerRecord classifies h by its concrete type. Passing anything else is a programmer
// error caught at registration time, matching the teacher's own panic-on-Add convention.
func newHandlerRecord(identity string, h any) handlerRecord {
	rec := handlerRecord{hash: hashIdentity(identity)}
	switch v := h.(type) {
	case HandlerFunc:
		rec.fn = v
	case func(*Context) error:
		rec.fn = v
	case ErrorHandlerFunc:
		rec.errFn = v
	case func(error, *Context) error:
		rec.errFn = v
	default:
		panic("turtle: handler must be a HandlerFunc or ErrorHandlerFunc")
	}
	return rec
}

// runChain executes records in order: regular handlers run while no error is outstanding,
// error handlers run once one is (spec §4.1 "chain forwards the first non-nil error to the
// next error-arity handler"). Blacklisting (spec §3) only removes a handler's method from a
// route's computed Allow set; it never skips the handler here.
func runChain(c *Context, records []handlerRecord) error {
	var err error
	for _, rec := range records {
		switch {
		case err == nil && rec.fn != nil:
			err = rec.fn(c)
		case err != nil && rec.errFn != nil:
			err = rec.errFn(err, c)
		default:
			continue
		}
		if c.Response().Committed {
			return err
		}
	}
	return err
}
