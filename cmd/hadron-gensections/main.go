// Command hadron-gensections is the build-time half of the linker-
// section replacement spec §6.4's Design Notes call for (the other
// half is internal/registry's init()-time constructor registration,
// used by in-tree drivers). It walks an out-of-tree driver module,
// finds package-level var literals typed as one of
// internal/registry's descriptor types, and emits a
// zz_generated_registry.go containing a plain Go slice literal of
// them — functionally identical to reading
// __hadron_pci_drivers_start/_end out of a linked image, but
// achievable without custom linker sections.
//
// Grounded on _examples/SeleniaProject-Orizon's mock generator
// (internal/testrunner/mockgen/generator.go), which uses the same
// golang.org/x/tools/go/packages load-then-inspect-types.Scope
// pattern to find declarations by name/type rather than by parsing
// source text directly.
package main

import (
	"flag"
	"fmt"
	"go/format"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"
)

// descriptorKind identifies which internal/registry entry type a
// matched var holds.
type descriptorKind int

const (
	kindPCI descriptorKind = iota
	kindPlatform
	kindFs
)

var descriptorTypeNames = map[string]descriptorKind{
	"github.com/hadron-os/hadron/internal/registry.PciDriverEntry":      kindPCI,
	"github.com/hadron-os/hadron/internal/registry.PlatformDriverEntry": kindPlatform,
	"github.com/hadron-os/hadron/internal/registry.FsEntry":             kindFs,
}

type match struct {
	kind    descriptorKind
	varName string
	pkgPath string
}

func main() {
	var (
		out     = flag.String("out", "zz_generated_registry.go", "output file path")
		pkgName = flag.String("package", "registrygen", "package name for the generated file")
		modRoot = flag.String("modroot", ".", "module root containing go.mod, used to resolve the module path")
	)
	flag.Parse()
	patterns := flag.Args()
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	if _, err := readModulePath(*modRoot); err != nil {
		fmt.Fprintf(os.Stderr, "hadron-gensections: %v\n", err)
		os.Exit(1)
	}

	matches, err := scan(patterns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hadron-gensections: %v\n", err)
		os.Exit(1)
	}

	code, err := render(*pkgName, matches)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hadron-gensections: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, []byte(code), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "hadron-gensections: writing %s: %v\n", *out, err)
		os.Exit(1)
	}
}

// readModulePath confirms modRoot/go.mod parses and returns its
// module path, the way a build step would want to confirm it is
// pointed at a real Go module before walking it.
func readModulePath(modRoot string) (string, error) {
	data, err := os.ReadFile(filepath.Join(modRoot, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("reading go.mod: %w", err)
	}
	f, err := modfile.Parse("go.mod", data, nil)
	if err != nil {
		return "", fmt.Errorf("parsing go.mod: %w", err)
	}
	if f.Module == nil {
		return "", fmt.Errorf("go.mod has no module statement")
	}
	return f.Module.Mod.Path, nil
}

// scan loads patterns and returns every package-level var whose type
// matches one of descriptorTypeNames.
func scan(patterns []string) ([]match, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, fmt.Errorf("one or more packages failed to load")
	}

	var matches []match
	for _, p := range pkgs {
		if p.Types == nil || p.Types.Scope() == nil {
			continue
		}
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			obj, ok := scope.Lookup(name).(*types.Var)
			if !ok || !obj.Exported() {
				continue
			}
			kind, ok := descriptorTypeNames[obj.Type().String()]
			if !ok {
				continue
			}
			matches = append(matches, match{kind: kind, varName: name, pkgPath: p.PkgPath})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].pkgPath != matches[j].pkgPath {
			return matches[i].pkgPath < matches[j].pkgPath
		}
		return matches[i].varName < matches[j].varName
	})
	return matches, nil
}

// render emits the generated registry file: one import per source
// package, plus three slice vars (PCIDrivers, PlatformDrivers,
// Filesystems) listing every matched descriptor, grouped by kind.
func render(pkgName string, matches []match) (string, error) {
	imports := map[string]string{} // pkgPath -> local alias
	var buf strings.Builder
	fmt.Fprintf(&buf, "// Code generated by hadron-gensections. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", pkgName)

	buf.WriteString("import (\n")
	buf.WriteString("\t\"github.com/hadron-os/hadron/internal/registry\"\n")
	for _, m := range matches {
		if _, ok := imports[m.pkgPath]; ok {
			continue
		}
		alias := fmt.Sprintf("pkg%d", len(imports))
		imports[m.pkgPath] = alias
		fmt.Fprintf(&buf, "\t%s %q\n", alias, m.pkgPath)
	}
	buf.WriteString(")\n\n")

	emit := func(varName, entryType string, kind descriptorKind) {
		fmt.Fprintf(&buf, "var %s = []registry.%s{\n", varName, entryType)
		for _, m := range matches {
			if m.kind != kind {
				continue
			}
			fmt.Fprintf(&buf, "\t%s.%s,\n", imports[m.pkgPath], m.varName)
		}
		buf.WriteString("}\n\n")
	}
	emit("PCIDrivers", "PciDriverEntry", kindPCI)
	emit("PlatformDrivers", "PlatformDriverEntry", kindPlatform)
	emit("Filesystems", "FsEntry", kindFs)

	formatted, err := format.Source([]byte(buf.String()))
	if err != nil {
		// Returning the unformatted source keeps the generator useful
		// for debugging a bad scan rather than failing silently.
		return buf.String(), nil
	}
	return string(formatted), nil
}
