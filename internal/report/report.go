// Package report declares the stage-diff report boundary. spec.md marks
// HTML report generation out of scope; this interface exists so the Stage
// Engine has somewhere to call into if a concrete generator is added later,
// without vibec's core depending on any particular report format.
package report

import "github.com/strawberry-computer/vibec/internal/stageengine"

// Generator turns a compile run's outcomes into a report artifact (e.g. an
// HTML diff view). No implementation ships with vibec's core.
type Generator interface {
	Generate(outcomes []stageengine.Outcome, outputRoot string) error
}
