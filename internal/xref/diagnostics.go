package xref

import (
	"fmt"
	"log/slog"
)

// Phase names a step of the scan pipeline.
type Phase string

const (
	PhaseCatalog   Phase = "catalog"
	PhaseHeuristic Phase = "heuristic"
	PhaseTrack     Phase = "track"
	PhaseCrosslink Phase = "crosslink"
)

// Phases lists the pipeline steps in execution order.
func Phases() []Phase {
	return []Phase{PhaseCatalog, PhaseHeuristic, PhaseTrack, PhaseCrosslink}
}

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic records a file, symbol or structural problem that was absorbed
// during a scan.
type Diagnostic struct {
	Phase    Phase    `json:"phase" yaml:"phase"`
	Severity Severity `json:"severity" yaml:"severity"`
	File     string   `json:"file,omitempty" yaml:"file,omitempty"`
	Symbol   string   `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	target := d.File
	if d.Symbol != "" {
		if target != "" {
			target += " "
		}
		target += d.Symbol
	}
	if target == "" {
		return fmt.Sprintf("[%s] %s", d.Phase, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Phase, target, d.Message)
}

// recorder collects diagnostics and mirrors each one to the log.
type recorder struct {
	logger *slog.Logger
	inst   *Instrumentation
	list   []Diagnostic
}

func (r *recorder) add(d Diagnostic) {
	if d.Severity == "" {
		d.Severity = SeverityWarning
	}
	r.list = append(r.list, d)
	r.inst.diagnostic(d.Phase)

	attrs := []any{"phase", string(d.Phase)}
	if d.File != "" {
		attrs = append(attrs, "path", d.File)
	}
	if d.Symbol != "" {
		attrs = append(attrs, "symbol", d.Symbol)
	}
	if d.Severity == SeverityWarning {
		r.logger.Warn(d.Message, attrs...)
	} else {
		r.logger.Info(d.Message, attrs...)
	}
}

func (r *recorder) warn(phase Phase, file, symbol, msg string) {
	r.add(Diagnostic{Phase: phase, Severity: SeverityWarning, File: file, Symbol: symbol, Message: msg})
}
