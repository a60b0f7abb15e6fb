package analysis

import (
	"chir/internal/chir"
)

// EliminateRedundantLoads removes Loads whose location has a known reaching
// Store or Load, replacing their uses with the reaching value. When the
// eliminated Load fed a call through a function-typed variable the call's
// receiver-type metadata is repointed at the reaching value's static type,
// otherwise later lowering resolves dispatch against the wrong type.
type EliminateRedundantLoads struct {
	BlockLimit int
}

func (p *EliminateRedundantLoads) Name() string { return "Redundant Load Elimination" }

func (p *EliminateRedundantLoads) Description() string {
	return "Forwards stored values to loads of the same cell and deletes the loads"
}

func (p *EliminateRedundantLoads) Apply(pkg *chir.Package) bool {
	engine := NewEngine[*ReachingState](ReachingDefs{})
	engine.BlockLimit = p.BlockLimit

	changed := false
	for _, fn := range pkg.Funcs {
		res := engine.RunFunc(fn)
		if res.Skipped {
			continue
		}
		if p.rewriteFunc(res, fn) {
			changed = true
		}
	}
	return changed
}

func (p *EliminateRedundantLoads) rewriteFunc(res Result[*ReachingState], fn *chir.Func) bool {
	domain := ReachingDefs{}
	type forwarding struct {
		load *chir.LoadExpr
		to   chir.Value
	}
	var found []forwarding

	for _, b := range fn.Body.Reachable() {
		Replay[*ReachingState](domain, res, b, func(s *ReachingState, e chir.Expr) {
			load, ok := e.(*chir.LoadExpr)
			if !ok {
				return
			}
			def := s.Reaching(load.Location())
			if def == nil || def == chir.Expr(load) {
				return
			}
			if v := DefinedValue(def); v != nil {
				found = append(found, forwarding{load: load, to: v})
			}
		})
	}

	// Forwarding to a load that is itself being removed must chase the chain
	// down to a surviving value.
	replaced := make(map[chir.Value]chir.Value)
	for _, f := range found {
		to := f.to
		for {
			next, ok := replaced[to]
			if !ok {
				break
			}
			to = next
		}
		patchCallMetadata(f.load.Result(), to)
		replaced[f.load.Result()] = to
		f.load.Result().ReplaceWith(to)
		chir.RemoveExpr(f.load)
	}
	return len(found) > 0
}

// patchCallMetadata repoints the receiver-type metadata of every call whose
// callee is the about-to-be-forwarded load result.
func patchCallMetadata(old *chir.LocalVar, repl chir.Value) {
	for _, user := range old.Users() {
		switch user := user.(type) {
		case *chir.ApplyExpr:
			if user.Callee() == chir.Value(old) && user.ThisType != nil {
				user.ThisType = chir.StripRef(repl.Type())
			}
		case *chir.ApplyWithExceptionExpr:
			if user.Callee() == chir.Value(old) && user.ThisType != nil {
				user.ThisType = chir.StripRef(repl.Type())
			}
		}
	}
}
