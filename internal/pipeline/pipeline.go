// Package pipeline sequences the whole-program passes over CHIR packages and
// keeps the verifier between them, so a pass that corrupts the graph is caught
// at the pass boundary instead of miscompiling downstream.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"chir/internal/analysis"
	"chir/internal/chir"
	"chir/internal/closure"
	"chir/internal/errors"
	"chir/internal/verifier"
)

var log = commonlog.GetLogger("chir.pipeline")

// Pass is a single transformation over one package.
type Pass interface {
	Name() string
	Apply(pkg *chir.Package) bool // Returns true if changes were made
	Description() string
}

// Pipeline manages the sequence of passes.
type Pipeline struct {
	passes []Pass
	check  *verifier.Verifier
}

// New creates a pipeline with the default passes in execution order.
func New() *Pipeline {
	p := Empty()

	p.AddPass(&analysis.Devirtualize{})
	p.AddPass(&analysis.EliminateRedundantLoads{}) // After devirt: direct calls clobber less
	p.AddPass(closure.Convert{})

	return p
}

// Empty creates a pipeline with no passes; callers add their own.
func Empty() *Pipeline {
	return &Pipeline{check: verifier.Default()}
}

// AddPass appends a pass to the pipeline.
func (p *Pipeline) AddPass(pass Pass) {
	p.passes = append(p.passes, pass)
}

// VerificationError reports the violations the verifier found after a pass.
// Pass is "input" when the package was broken before any pass ran.
type VerificationError struct {
	Pass       string
	Package    string
	Violations []errors.Violation
}

func (e *VerificationError) Error() string {
	plural := "violations"
	if len(e.Violations) == 1 {
		plural = "violation"
	}
	return fmt.Sprintf("package %s: %d verifier %s after %s",
		e.Package, len(e.Violations), plural, e.Pass)
}

// Report renders the full colored violation listing.
func (e *VerificationError) Report() string {
	return errors.NewReporter(e.Package).FormatAll(e.Violations)
}

// Run executes every pass on one package, verifying the input and the output
// of each mutating pass.
func (p *Pipeline) Run(pkg *chir.Package) error {
	if violations := p.check.Run(pkg); len(violations) > 0 {
		return &VerificationError{Pass: "input", Package: pkg.Name, Violations: violations}
	}

	for _, pass := range p.passes {
		log.Debugf("%s: %s", pass.Name(), pass.Description())
		if !pass.Apply(pkg) {
			log.Debugf("%s: no changes in %s", pass.Name(), pkg.Name)
			continue
		}
		log.Infof("%s: rewrote %s", pass.Name(), pkg.Name)
		if violations := p.check.Run(pkg); len(violations) > 0 {
			return &VerificationError{Pass: pass.Name(), Package: pkg.Name, Violations: violations}
		}
	}
	return nil
}

// RunAll processes a set of packages in dependency order.
func (p *Pipeline) RunAll(pkgs []*chir.Package) error {
	ordered, err := ResolveBuildOrder(pkgs)
	if err != nil {
		return err
	}
	for _, pkg := range ordered {
		if err := p.Run(pkg); err != nil {
			return err
		}
	}
	return nil
}

// ResolveBuildOrder topologically sorts packages by their Requires lists. A
// required package not in the set is assumed already built and skipped; a
// dependency cycle is an error naming the cycle.
func ResolveBuildOrder(pkgs []*chir.Package) ([]*chir.Package, error) {
	byName := make(map[string]*chir.Package, len(pkgs))
	for _, pkg := range pkgs {
		byName[pkg.Name] = pkg
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*chir.Package]int, len(pkgs))
	ordered := make([]*chir.Package, 0, len(pkgs))

	var visit func(pkg *chir.Package, trail []string) error
	visit = func(pkg *chir.Package, trail []string) error {
		switch state[pkg] {
		case done:
			return nil
		case visiting:
			cycle := append(trail, pkg.Name)
			return fmt.Errorf("package dependency cycle: %s", strings.Join(cycle, " -> "))
		}
		state[pkg] = visiting
		for _, req := range pkg.Requires {
			dep, ok := byName[req]
			if !ok {
				continue
			}
			if err := visit(dep, append(trail, pkg.Name)); err != nil {
				return err
			}
		}
		state[pkg] = done
		ordered = append(ordered, pkg)
		return nil
	}

	for _, pkg := range pkgs {
		if err := visit(pkg, nil); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
