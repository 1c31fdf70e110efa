package vm

// execAwait implements the AWAIT opcode (spec §5 async suspension). A
// single-threaded, cooperative interpreter with no host event loop has
// nothing to hand control back to while a promise is pending, so AWAIT
// here drains the microtask queue synchronously until the awaited value
// settles rather than truly suspending the frame — the same observable
// result (the continuation runs with the fulfilled value, or the rejection
// propagates as a thrown exception) without needing a second, detachable
// frame stack the way YIELD does. Non-thenables resolve to themselves
// immediately, per ECMAScript's Await.
func (vmi *VM) execAwait(f *Frame) stepOutcome {
	v := f.pop()
	p, ok := v.AsObject().(*PromiseObject)
	if !ok {
		f.push(v)
		return outcomeContinue()
	}
	for p.state == promisePending && vmi.async.RunUntilIdle() {
	}
	switch p.state {
	case promiseFulfilled:
		f.push(p.result)
		return outcomeContinue()
	case promiseRejected:
		p.handled = true
		return outcomeThrow(p.result)
	default:
		// Still pending after draining every queued job: nothing will ever
		// settle it (e.g. it was never resolved/rejected by script).
		f.push(Undefined)
		return outcomeContinue()
	}
}

// execYield implements the YIELD opcode: it never resumes on its own —
// runGeneratorFrames (generator.go) is the only driver that interprets a
// stepYield outcome, pausing the generator's frame stack and handing the
// yielded value back to whatever called .next().
func (vmi *VM) execYield(f *Frame) stepOutcome {
	return outcomeYield(f.pop())
}
