package atollbuild

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

const pageGlob = "**/*.{tsx,jsx}"

// DiscoverPages maps page source files under pagesDir to route keys.
// "index" files map to their directory's route; everything else maps to
// its extension-stripped path.
func DiscoverPages(pagesDir string) (map[string]string, error) {
	matches, err := doublestar.Glob(os.DirFS(pagesDir), pageGlob)
	if err != nil {
		return nil, fmt.Errorf("glob pages in %s: %w", pagesDir, err)
	}

	routes := make(map[string]string, len(matches))
	for _, rel := range matches {
		src := path.Join(filepath.ToSlash(pagesDir), rel)
		routes[src] = routeKeyForPage(rel)
	}
	return routes, nil
}

func routeKeyForPage(rel string) string {
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	if path.Base(rel) == "index" {
		rel = path.Dir(rel)
		if rel == "." {
			return "/"
		}
	}
	return "/" + rel
}

// --- Island Scanning (esbuild + JS AST walk) ---

var importRegex = regexp.MustCompile(`import\((` + "`" + `[^` + "`" + `]+` + "`" + `|'[^']+'|"[^"]+")\)`)

// UnresolvedIsland represents an island registration whose module path
// could not be statically determined.
type UnresolvedIsland struct {
	RawModuleExpr string
	Reason        string
}

type importTracker struct {
	imports map[string]string
}

// islandCallVisitor finds calls to the helper imported from the island
// import source and extracts each call's module argument.
type islandCallVisitor struct {
	islandFuncNames map[string]bool
	modules         *[]string
	unresolved      *[]UnresolvedIsland
	importTracker   *importTracker
}

func (iv *islandCallVisitor) Enter(n js.INode) js.IVisitor {
	call, isCall := n.(*js.CallExpr)
	if !isCall {
		return iv
	}

	ident, isIdent := call.X.(*js.Var)
	if !isIdent {
		return iv
	}
	if _, isIslandFunc := iv.islandFuncNames[string(ident.Data)]; !isIslandFunc {
		return iv
	}
	if len(call.Args.List) == 0 {
		return iv
	}

	arg := call.Args.List[0]
	if module, ok := iv.resolveModuleArg(arg.Value); ok {
		*iv.modules = append(*iv.modules, module)
	}
	return iv
}

func (iv *islandCallVisitor) Exit(n js.INode) {}

// resolveModuleArg accepts the shapes a registration can statically carry:
// a string literal (also what import("...") collapses to after the regex
// pre-pass), a const variable assigned a string literal, or an arrow
// function whose body returns one of those.
func (iv *islandCallVisitor) resolveModuleArg(expr js.IExpr) (string, bool) {
	switch v := expr.(type) {
	case *js.LiteralExpr:
		if v.TokenType == js.StringToken {
			if unquoted, err := strconv.Unquote(string(v.Data)); err == nil {
				return unquoted, true
			}
		}
	case *js.Var:
		if importPath, exists := iv.importTracker.imports[string(v.Data)]; exists {
			return importPath, true
		}
		*iv.unresolved = append(*iv.unresolved, UnresolvedIsland{
			RawModuleExpr: string(v.Data),
			Reason:        fmt.Sprintf("variable '%s' is not a tracked import or const string", string(v.Data)),
		})
	case *js.ArrowFunc:
		for _, stmt := range v.Body.List {
			if ret, ok := stmt.(*js.ReturnStmt); ok && ret.Value != nil {
				return iv.resolveModuleArg(ret.Value)
			}
		}
		*iv.unresolved = append(*iv.unresolved, UnresolvedIsland{
			RawModuleExpr: "() => ...",
			Reason:        "arrow function body does not return a static module path",
		})
	default:
		*iv.unresolved = append(*iv.unresolved, UnresolvedIsland{
			RawModuleExpr: "<expression>",
			Reason:        "module argument is not a static string, variable, or import() call",
		})
	}
	return "", false
}

func extractIslandCalls(code, importSource string) ([]string, []UnresolvedIsland, error) {
	parsedAST, err := js.Parse(parse.NewInputString(code), js.Options{})
	if err != nil {
		return nil, nil, fmt.Errorf("parse JS/TS: %w", err)
	}

	islandFuncNames := make(map[string]bool)
	tracker := &importTracker{imports: make(map[string]string)}

	for _, stmt := range parsedAST.BlockStmt.List {
		switch s := stmt.(type) {
		case *js.ImportStmt:
			importPath := ""
			if s.Module != nil {
				importPath = strings.Trim(string(s.Module), `"'`+"`")
			}
			if importPath == importSource {
				for _, alias := range s.List {
					if string(alias.Name) == "island" ||
						(string(alias.Name) == "" && string(alias.Binding) == "island") {
						if len(alias.Binding) > 0 {
							islandFuncNames[string(alias.Binding)] = true
						} else {
							islandFuncNames[string(alias.Name)] = true
						}
					}
				}
			}
		case *js.VarDecl:
			for _, binding := range s.List {
				if varBinding, ok := binding.Binding.(*js.Var); ok {
					varName := string(varBinding.Data)
					if strLit, ok := binding.Default.(*js.LiteralExpr); ok && strLit.TokenType == js.StringToken {
						unquoted, err := strconv.Unquote(string(strLit.Data))
						if err == nil {
							tracker.imports[varName] = unquoted
						}
					}
				}
			}
		}
	}

	var modules []string
	var unresolved []UnresolvedIsland

	visitor := &islandCallVisitor{
		islandFuncNames: islandFuncNames,
		modules:         &modules,
		unresolved:      &unresolved,
		importTracker:   tracker,
	}
	js.Walk(visitor, parsedAST)

	return modules, unresolved, nil
}

// ScanPageIslands returns the island component modules a page registers,
// resolved relative to the page file. Registrations that cannot be resolved
// statically are logged and skipped.
func ScanPageIslands(pageFile, importSource string, log *slog.Logger) ([]string, error) {
	code, err := os.ReadFile(pageFile)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	minifyResult := esbuild.Transform(string(code), esbuild.TransformOptions{
		Format:            esbuild.FormatESModule,
		Platform:          esbuild.PlatformNode,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: false,
		Loader:            esbuild.LoaderTSX,
		Target:            esbuild.ES2020,
	})
	if len(minifyResult.Errors) > 0 {
		for _, msg := range minifyResult.Errors {
			log.Error(fmt.Sprintf("esbuild error: %s", msg.Text))
		}
		return nil, errors.New("esbuild transform failed")
	}

	transformedCode := importRegex.ReplaceAllString(string(minifyResult.Code), "$1")

	modules, unresolved, err := extractIslandCalls(transformedCode, importSource)
	if err != nil {
		return nil, fmt.Errorf("extract island calls: %w", err)
	}

	for _, u := range unresolved {
		log.Warn("island registration cannot be statically resolved",
			"file", pageFile,
			"expression", u.RawModuleExpr,
			"reason", u.Reason,
		)
		log.Warn("This island will be ignored. Use a static string path, a dynamic import with a string literal, or a const variable assigned to a string literal.")
	}

	pageDir := filepath.Dir(pageFile)
	resolved := make([]string, 0, len(modules))
	seen := make(map[string]struct{}, len(modules))
	for _, m := range modules {
		modulePath := filepath.ToSlash(filepath.Join(pageDir, m))
		if _, err := os.Stat(modulePath); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("island module does not exist: %s (page: %s)", modulePath, pageFile)
			}
			return nil, fmt.Errorf("access island module %s: %w", modulePath, err)
		}
		if _, dup := seen[modulePath]; dup {
			continue
		}
		seen[modulePath] = struct{}{}
		resolved = append(resolved, modulePath)
	}
	sort.Strings(resolved)
	return resolved, nil
}
