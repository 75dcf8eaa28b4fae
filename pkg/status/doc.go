/*
Package status renders batch progress and outcomes for the person
watching the run.

	            +-------------+
	            |   Manager   |
	            | (progress)  |
	            +------+------+
	                   |
	      +-----------+-----------+
	      |                       |
	+-----+-----+           +----+----+
	| Formatter |           |  User   |
	|  (lines)  |           | (pterm) |
	+-----------+           +---------+

🎯 Purpose:
- Tracks run progress (processed / total)
- Renders one console line per finished file
- Summarizes the final report, failures included
- Keeps a structured-log shadow of everything it prints

🔄 Flow:
1. The pool announces the run with StartOperation
2. Every task outcome arrives through TaskDone
3. FinishOperation renders the summary with elapsed time

⚡ Key Responsibilities:
- Progress reporting
- Per-file outcome lines
- Final summary rendering
- Validation and state-change messages for subcommands

🤝 Interfaces:
- Manager: receives outcomes from the pool's collector
- FileFormatter: formats outcome and progress lines
- UserLogger: prints user-facing messages via pterm

📝 Design Philosophy:
The status package presents. It never decides. All counting and
classification happens in the batch package; status turns those facts
into readable console output and mirrors them into the structured log
so a failed run can be reconstructed without re-running it.
*/
package status
