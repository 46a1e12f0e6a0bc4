// Command noalloc is a host-side static checker for the ISR reentrancy
// rule: a function marked with a "//go:noalloc" doc comment must never
// allocate. It covers the one rule this kernel cannot get away with
// testing dynamically, since there is no real interrupt controller in a
// hosted test binary to prove an ISR never triggers a GC-visible
// allocation under it.
package main

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/analysis/singlechecker"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer flags allocation inside any function carrying a "go:noalloc"
// directive comment: make/new/append calls, slice/map/channel composite
// literals, closures, deferred calls and goroutine launches (each of which
// may need to heap-allocate a closure or argument frame). Calls to other
// functions are not followed: only the marked function's own body is
// checked, since following them would need whole-program call-graph
// construction this simple pass does not build.
var Analyzer = &analysis.Analyzer{
	Name:     "noalloc",
	Doc:      "flags allocation inside functions marked //go:noalloc",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func main() {
	singlechecker.Main(Analyzer)
}

func isNoAllocMarked(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if c.Text == "//go:noalloc" {
			return true
		}
	}
	return false
}

func run(pass *analysis.Pass) (interface{}, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{(*ast.FuncDecl)(nil)}
	insp.Preorder(nodeFilter, func(n ast.Node) {
		fn := n.(*ast.FuncDecl)
		if !isNoAllocMarked(fn.Doc) || fn.Body == nil {
			return
		}
		checkBody(pass, fn.Body)
	})

	return nil, nil
}

// checkBody walks a noalloc function's body looking for constructs that may
// allocate on the Go heap.
func checkBody(pass *analysis.Pass, body *ast.BlockStmt) {
	ast.Inspect(body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.FuncLit:
			pass.Reportf(node.Pos(), "noalloc function contains a closure literal, which may allocate")
		case *ast.GoStmt:
			pass.Reportf(node.Pos(), "noalloc function launches a goroutine, which allocates a new stack")
		case *ast.DeferStmt:
			pass.Reportf(node.Pos(), "noalloc function uses defer, which may allocate an argument frame")
		case *ast.CallExpr:
			checkCall(pass, node)
		case *ast.CompositeLit:
			if isHeapLikeType(pass.TypesInfo.TypeOf(node)) {
				pass.Reportf(node.Pos(), "noalloc function builds a %s composite literal, which allocates", describeType(pass.TypesInfo.TypeOf(node)))
			}
		}
		return true
	})
}

func checkCall(pass *analysis.Pass, call *ast.CallExpr) {
	ident, ok := call.Fun.(*ast.Ident)
	if !ok {
		return
	}

	builtin, ok := pass.TypesInfo.Uses[ident].(*types.Builtin)
	if !ok {
		return
	}

	switch builtin.Name() {
	case "make", "new":
		pass.Reportf(call.Pos(), "noalloc function calls %s, which allocates", builtin.Name())
	case "append":
		pass.Reportf(call.Pos(), "noalloc function calls append, which may reallocate its backing array")
	}
}

func isHeapLikeType(t types.Type) bool {
	if t == nil {
		return false
	}
	switch t.Underlying().(type) {
	case *types.Slice, *types.Map, *types.Chan:
		return true
	}
	return false
}

func describeType(t types.Type) string {
	switch t.Underlying().(type) {
	case *types.Slice:
		return "slice"
	case *types.Map:
		return "map"
	case *types.Chan:
		return "channel"
	default:
		return "composite"
	}
}
