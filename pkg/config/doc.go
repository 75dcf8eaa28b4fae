/*
Package config manages configuration parsing and validation for retext.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	      +-----+-----+-----+-----+
	      |           |           |
	+-----+-----+ +---+----+ +----+----+
	|   YAML    | |  HCL   | |  JSON   |
	|  Parser   | | Parser | | Parser  |
	+-----------+ +--------+ +---------+

🎯 Purpose:
- Manages configuration loading and parsing
- Validates configuration values and applies defaults
- Provides type-safe config access
- Supports multiple config formats

🔄 Flow:
1. Reads configuration from file
2. Parses format-specific syntax
3. Validates values, parses durations, applies defaults
4. Provides validated config to other packages

⚡ Key Responsibilities:
- Configuration parsing
- Schema validation (unknown keys are rejected)
- Default value management
- Format abstraction

🤝 Interfaces:
- Parser: Format-specific parsing, registered at init
- Config: Type-safe config access

📝 Design Philosophy:
The file stores what a person would write: durations as strings,
retries as a small number, globs as written. Validate is the single
place where those become typed values and defaults are filled in, so
every consumer downstream sees one canonical configuration regardless
of which format it came from.
*/
package config
