package executor

/// SleepTicks is the `sleep_ticks(n)` future: Pending until the
/// registry's tick counter reaches deadline, at which point the timer
/// interrupt fires the registered waker and the next poll observes
/// Ready (spec §4.9).
type SleepTicks struct {
	registry   *TimerRegistry
	duration   Tick
	deadline   Tick
	registered bool
}

/// NewSleepTicks builds a future that resolves once ticks timer ticks
/// have elapsed, measured from the moment it's first polled (not from
/// construction, matching Rust's lazy-future semantics).
func NewSleepTicks(registry *TimerRegistry, ticks Tick) *SleepTicks {
	return &SleepTicks{registry: registry, duration: ticks}
}

func (s *SleepTicks) Poll(cx *Context) Poll {
	if !s.registered {
		s.deadline = s.registry.Now() + s.duration
		s.registered = true
		if s.registry.Now() >= s.deadline {
			return Ready
		}
		s.registry.RegisterAt(s.deadline, cx.Waker)
		return Pending
	}
	if s.registry.Now() >= s.deadline {
		return Ready
	}
	return Pending
}

/// YieldNow is `yield_now()`: Pending on its first poll (re-queuing
/// the task at the back of its own ready lane via a same-CPU
/// self-wake), Ready on the second.
type YieldNow struct {
	yielded bool
}

func (y *YieldNow) Poll(cx *Context) Poll {
	if y.yielded {
		return Ready
	}
	y.yielded = true
	cx.Waker.Wake(cx.Waker.HomeCPU())
	return Pending
}

/// Either is the two-armed result of Select: exactly one of Left/Right
/// is populated, indicated by IsLeft (spec §4.7 "Timeouts are
/// implemented as select(future, sleep) combinators returning
/// Either<A, B>").
type Either[A, B any] struct {
	IsLeft bool
	Left   A
	Right  B
}

/// ValueFuture is a future that produces a value on completion,
/// distinct from the bare Future tasks use (spec's TaskEntry futures
/// have Output=()) — Select needs the produced values to build an
/// Either.
type ValueFuture[T any] interface {
	Poll(cx *Context) (T, Poll)
}

/// Select polls a and b in order on every poll cycle and resolves to
/// whichever completes first, per spec §4.7's timeout combinator. If
/// both are Ready in the same poll, a wins.
func Select[A, B any](cx *Context, a ValueFuture[A], b ValueFuture[B]) (Either[A, B], Poll) {
	if v, p := a.Poll(cx); p == Ready {
		return Either[A, B]{IsLeft: true, Left: v}, Ready
	}
	if v, p := b.Poll(cx); p == Ready {
		return Either[A, B]{IsLeft: false, Right: v}, Ready
	}
	return Either[A, B]{}, Pending
}

/// SleepValue adapts SleepTicks to ValueFuture[struct{}] so it can be
/// used as the "sleep" arm of Select alongside a value-producing
/// future.
type SleepValue struct {
	Sleep *SleepTicks
}

func (s SleepValue) Poll(cx *Context) (struct{}, Poll) {
	return struct{}{}, s.Sleep.Poll(cx)
}
