//go:generate flatc --go --go-namespace fb -o internal schema/record.fbs

// Package zipbuild assembles deterministic ZIP archives from named byte
// resources, entries re-exported from other archives, and a pipeline of
// entry transformers.
//
// A [Builder] collects the inputs and is consumed by [Builder.Build], which
// returns an immutable [Archive]. The archive carries a [Fingerprint] that
// changes whenever anything that affects the output bytes changes, so a
// caller can skip rebuilding when the fingerprint is unchanged. Writing the
// same archive twice produces byte-identical output.
//
// # Quick Start
//
//	b := zipbuild.NewBuilder()
//	if err := b.AddFile("a.txt", source.FromString("alpha")); err != nil {
//	    return err
//	}
//	lib, err := mapping.TargetDirectory("lib")
//	if err != nil {
//	    return err
//	}
//	dep, err := source.NewFile("dep.zip")
//	if err != nil {
//	    return err
//	}
//	if err := b.AddInclude(dep, lib); err != nil {
//	    return err
//	}
//	archive, err := b.Build("app.zip")
//	if err != nil {
//	    return err
//	}
//	err = archive.WriteFile(ctx, "out/app.zip")
//
// # Ordering
//
// Directly added resources are written first, ordered by case-folded path.
// Included archives follow in the order they were added, each expanded in
// its own central directory order.
//
// # Transformers
//
// Transformers registered with [Builder.AddTransformer] see every entry
// before it is written and may rewrite, consume, or add entries. See the
// transform package for the contract and the built-in transformers.
//
// # Caching
//
// The cache package materializes archives keyed by their fingerprint:
//
//	store := cache.New(backend)
//	res, err := store.Materialize(ctx, archive)
package zipbuild
