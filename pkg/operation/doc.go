/*
Package operation wires a whole run together: scan, transform, record.

	+-------------+
	|  Operation  |
	|(Orchestrate)|
	+------+------+
	       |
	 +-----+------+--------+
	 |            |        |
	+-+----+  +---+---+  +-+----+
	| scan |  | batch |  | state|
	+------+  +-------+  +------+

🎯 Purpose:
- Builds every collaborator a run needs from one Config
- Feeds the scanned tree through the bounded worker pool
- Persists the run record and hands back the final report

🔄 Flow:
1. Scan the input tree and mirror its directory skeleton
2. Load the prompt spec and build the transform client
3. Process every entry through the pool
4. Write the lock file and return the JobReport

⚡ Key Responsibilities:
- Dependency wiring (client, retrier, rate gate, trackers)
- Run lifecycle (start, progress fan-out, finish)
- Lock file bookkeeping for the status and clean verbs

🤝 Interfaces:
- Operator: the four verbs the CLI calls
- batch.Caller: the transform backend, swappable in tests

📝 Design Philosophy:
The operation package decides nothing about presentation and nothing
about transport. It owns the order of steps and which collaborator gets
which configuration value, so the CLI stays a flag parser and the
packages below it stay single-purpose.
*/
package operation
