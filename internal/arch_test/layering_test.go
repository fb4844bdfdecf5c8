package arch_test

import "testing"

// layers orders the internal packages. A package may import packages of its
// own layer or below.
var layers = map[string]int{
	"config":    0,
	"device":    0,
	"graph":     0,
	"reference": 0,
	"score":     0,
	"telemetry": 0,

	"ppr": 1, // host/device solver

	"bench": 2,

	"report": 3,
	"store":  3,

	"ui": 4,
}

func TestDependencyLayering(t *testing.T) {
	t.Parallel()

	for _, pkg := range packages(t) {
		layer, ok := layers[pkg]
		if !ok {
			t.Errorf("package %s has no layer; add it to layers", pkg)
			continue
		}
		for _, imp := range internalImports(t, pkg) {
			if l, ok := layers[imp]; ok && l > layer {
				t.Errorf("%s (layer %d) imports %s (layer %d)", pkg, layer, imp, l)
			}
		}
	}
}

func TestReferenceIndependentOfSolver(t *testing.T) {
	t.Parallel()

	for _, imp := range internalImports(t, "reference") {
		if imp == "ppr" || imp == "device" {
			t.Errorf("reference imports %s; the golden vector must not share solver code", imp)
		}
	}
}
