package verifier

import (
	"runtime"
	"sync"

	"chir/internal/chir"
	"chir/internal/errors"
)

// Rule is one named invariant subset. Rules are pure: they read the Package
// and report violations, never mutating anything, which is what makes the
// per-function checks safe to run concurrently.
type Rule interface {
	Name() string

	// CheckPackage verifies package-level invariants.
	CheckPackage(pkg *chir.Package) []errors.Violation

	// CheckFunc verifies one function. Called concurrently across functions.
	CheckFunc(pkg *chir.Package, fn *chir.Func) []errors.Violation
}

// Verifier runs a set of rules over a package. Per-function work is mapped
// over a worker pool; each worker keeps a private violation list and the
// lists are merged single-threaded at the end. A run never stops at the
// first failure, so one run surfaces every violation in the package.
type Verifier struct {
	rules []Rule

	// Workers bounds the pool size; zero means GOMAXPROCS.
	Workers int
}

// New creates a verifier running the given rules.
func New(rules ...Rule) *Verifier {
	return &Verifier{rules: rules}
}

// Default creates a verifier with every rule subset enabled.
func Default() *Verifier {
	return New(
		NonEmptyBlocks{},
		ExprArity{},
		TypeCompat{},
		VTableRefs{},
		ReachableRefs{},
		UniqueIdents{},
	)
}

// Rules returns the enabled rule names.
func (v *Verifier) Rules() []string {
	names := make([]string, len(v.rules))
	for i, r := range v.rules {
		names[i] = r.Name()
	}
	return names
}

// Run verifies pkg and returns every violation found, ordered by function
// position so the output is deterministic regardless of scheduling.
func (v *Verifier) Run(pkg *chir.Package) []errors.Violation {
	var out []errors.Violation
	for _, rule := range v.rules {
		out = append(out, rule.CheckPackage(pkg)...)
	}

	workers := v.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(pkg.Funcs) {
		workers = len(pkg.Funcs)
	}
	if workers == 0 {
		return out
	}

	perFunc := make([][]errors.Violation, len(pkg.Funcs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				var found []errors.Violation
				for _, rule := range v.rules {
					found = append(found, rule.CheckFunc(pkg, pkg.Funcs[i])...)
				}
				perFunc[i] = found
			}
		}()
	}
	for i := range pkg.Funcs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, found := range perFunc {
		out = append(out, found...)
	}
	return out
}

// funcSite names a location inside fn.
func funcSite(pkg *chir.Package, fn *chir.Func, block *chir.Block, e chir.Expr) errors.Site {
	site := errors.Site{Package: pkg.Name, Function: fn.Name}
	if block != nil {
		site.Block = block.Name
	}
	if e != nil {
		site.Expr = e.String()
	}
	return site
}
