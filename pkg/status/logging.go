// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package status

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/retext/pkg/batch"
	"github.com/walteh/retext/pkg/scan"
)

// 📢 UserLogger provides user-friendly feedback about the run
type UserLogger struct {
	log zerolog.Logger // for debug/error logging
}

// 🎯 NewUserLogger creates a new user logger
func NewUserLogger(ctx context.Context) *UserLogger {
	return &UserLogger{
		log: *zerolog.Ctx(ctx),
	}
}

// 📝 LogRunStart announces the beginning of a run
func (u *UserLogger) LogRunStart(input, output string, total int) {
	msg := fmt.Sprintf("Processing %d files from %s into %s", total, input, output)
	pterm.Info.WithPrefix(pterm.Prefix{Text: "🚀"}).Println(msg)
	u.log.Info().Msg(msg)
}

// 📝 LogFileOutcome logs one finished file with appropriate emoji and
// formatting
func (u *UserLogger) LogFileOutcome(o batch.Outcome) {
	var msg string
	var printer *pterm.PrefixPrinter
	switch {
	case !o.Success:
		msg = fmt.Sprintf("Failed %s", o.Entry.RelativePath)
		printer = pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"})
	case o.Entry.Kind == scan.Transformable:
		msg = fmt.Sprintf("Transformed %s", o.Entry.RelativePath)
		if o.Retries > 0 {
			msg += fmt.Sprintf(" (%d retries)", o.Retries)
		}
		printer = pterm.Success.WithPrefix(pterm.Prefix{Text: "✨"})
	default:
		msg = fmt.Sprintf("Copied %s", o.Entry.RelativePath)
		printer = pterm.Info.WithPrefix(pterm.Prefix{Text: "📋"})
	}

	if o.Err != nil {
		printer.Println(msg)
		pterm.Error.Println(o.Err)
		u.log.Error().Err(o.Err).Msg(msg) // Also log to zerolog for debugging
	} else {
		printer.Println(msg)
		u.log.Info().Msg(msg) // Also log to zerolog for debugging
	}
}

// 📊 LogRunSummary logs the final report of a run
func (u *UserLogger) LogRunSummary(report *batch.JobReport, elapsed time.Duration) {
	if report.Failed() {
		msg := fmt.Sprintf("Completed with failures in %s: %d succeeded, %d failed",
			elapsed.Round(time.Millisecond), report.SuccessfulCount, report.FailedCount)
		pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}).Println(msg)
		for _, f := range report.Failures {
			pterm.Error.Printf("%s: %s\n", f.RelativePath, f.Message)
		}
		u.log.Warn().Int("failed", report.FailedCount).Msg(msg)

		return
	}

	msg := fmt.Sprintf("Completed in %s: %d transformed, %d copied",
		elapsed.Round(time.Millisecond), report.Transformed, report.Copied)
	pterm.Success.WithPrefix(pterm.Prefix{Text: "✅"}).Println(msg)
	u.log.Info().Msg(msg)
}

// 📊 LogStateChange logs a change to the overall state
func (u *UserLogger) LogStateChange(description string) {
	printer := pterm.Info.WithPrefix(pterm.Prefix{Text: "📦"})
	printer.Println(description)
	u.log.Info().Msg(description)
}

// 🔍 LogValidation logs validation results
func (u *UserLogger) LogValidation(valid bool, description string, err error) {
	if valid {
		pterm.Success.WithPrefix(pterm.Prefix{Text: "✅"}).Println(description)
		u.log.Info().Msg(description)
	} else {
		if err != nil {
			pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"}).Println(description)
			pterm.Error.Println(err)
			u.log.Error().Err(err).Msg(description)
		} else {
			pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}).Println(description)
			u.log.Warn().Msg(description)
		}
	}
}
