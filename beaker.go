// Package beaker builds Algorand smart contracts whose programs depend on
// other compiled programs.
//
// An application or logic signature can embed the compiled bytes, hash or
// address of another program. Beaker compiles every dependency first, in
// depth-first order, and exposes the results to the parent as constants
// before the parent's own program is generated.
//
// # Basic Usage
//
// Declare a templated logic signature, embed it in an application and build:
//
//	owner := beaker.NewTemplateVariable("owner", beaker.KindBytes)
//	escrow := beaker.PrecompileLSig(beaker.NewLogicSignature("escrow",
//	    teal.Eq(teal.TxnSender(), owner.Expr()),
//	    beaker.WithTemplateVariables(owner),
//	))
//
//	app := beaker.NewApplication("factory")
//	app.AddPrecompile(escrow)
//	app.External("escrow_for(address)address", func(args []teal.Expr) (teal.Expr, error) {
//	    return escrow.TemplateHash(args[0])
//	})
//
//	spec, err := app.Build(ctx, algod.New(url, token))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Precompiles
//
// A precompile is a node in the dependency tree:
//
//   - AppPrecompile: an application's approval and clear programs, with page
//     splitting and extra page accounting for create transactions.
//
//   - LSigPrecompile: a logic signature assembled once with zero literals in
//     place of its template variables.
//
// The Coordinator rejects cycles before compiling anything, compiles a node
// shared by several parents once, and reports a failing dependency as a
// ChildCompilationError of its parent.
//
// # Template Variables
//
// A template variable is a "pushbytes" or "pushint" placeholder. After
// assembly its pc is found through the source map, and Populate splices
// encoded values into the binary without reassembling. TemplateHash emits the
// same splice as program code so an application can derive addresses of
// populated logic signatures at run time.
//
// # Compilers
//
// Programs are assembled by a Compiler. Package algod talks to a node's
// compile endpoint; OfflineCompiler assembles locally.
package beaker
