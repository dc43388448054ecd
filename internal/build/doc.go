// Package build runs one build attempt to completion.
//
// An Orchestrator picks a strategy per attempt: when the project descriptor
// (tsconfig.json by default) exists at the project root the external compiler
// runs as a subprocess and its output is parsed into diagnostics; otherwise
// the copy strategy copies .js and .json sources into the output directory.
// The public directory is then copied beneath the output directory and the
// output tree is walked to collect assets.
//
// At most one build runs at a time. A concurrent Build call fails with
// ErrBuildInProgress and never spawns a second compiler.
//
// # Usage
//
//	orch := build.New(build.Options{
//	    Root:    root,
//	    SrcDir:  "src",
//	    DistDir: "dist",
//	})
//	result, err := orch.Build(ctx)
//	if errors.Is(err, build.ErrBuildInProgress) {
//	    // another build is running
//	}
//
// # Output Structure
//
//	dist/
//	├── index.js        # compiler or copy output
//	├── data.json
//	└── public/         # copy of the public directory
//	    └── index.html
package build
