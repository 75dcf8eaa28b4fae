/*
Package batch is the concurrent engine of retext: a bounded worker pool
that mirrors per-file tasks into the output tree and aggregates their
outcomes into a single report.

	+-----------+     +-----------+     +-----------+
	|   Tasks   | --> |   Pool    | --> | Reporter  |
	| (per file)|     | (bounded) |     | (summary) |
	+-----------+     +-----------+     +-----------+

🎯 Purpose:
- Runs per-file tasks with at most N workers in flight
- Routes transform-eligible files through the retry/rate-limit caller
- Copies pass-through files verbatim
- Aggregates every outcome into one JobReport

🔄 Flow:
1. Receives classified entries from scan
2. Executes each task on a pooled worker
3. Streams outcomes to a single collector goroutine
4. Finalizes the report once every task has reported

⚡ Key Responsibilities:
- Concurrency bounding (errgroup SetLimit)
- Failure isolation, panics included
- Count conservation: successes + failures == tasks submitted
- Graceful shutdown and the fail-fast policy

🤝 Interfaces:
- Caller: the transform capability, injected
- Tracker: per-task progress reporting, optional
- retry.Caller + ratelimit.Limiter: throttled attempts

📝 Design Philosophy:
The pool never raises. A task can fail in any way it likes, the batch
keeps going and the report says what happened. Ordering guarantees are
deliberately minimal: directories exist before writes, outcomes are
recorded before finalize, and nothing else is promised.
*/
package batch
