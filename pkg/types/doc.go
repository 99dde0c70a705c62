// Package types provides shared type definitions for the Dopemux code
// search core.
//
// The types here flow across component boundaries: chunks produced by the
// chunker, documents stored in the dense and sparse indexes, search
// results returned to callers, and the progress/configuration records of
// an indexing run.
//
// # Documents and payloads
//
// Document is the explicit payload carried by every indexed point. Fields
// that every document has (file path, language, raw code) are named
// struct fields; truly dynamic extras go in the Metadata map:
//
//	doc := types.Document{
//	    ID:           "c3a1...",
//	    FilePath:     "internal/auth/session.go",
//	    FunctionName: "ValidateSession",
//	    Language:     "go",
//	    RawCode:      source,
//	    Metadata:     map[string]string{"branch": "main"},
//	}
//
// # Search profiles
//
// SearchProfile bundles the tuning knobs of one query: result count,
// per-field fusion weights, and the HNSW exploration factor. Three
// canonical presets exist:
//
//	types.ProfileImplementation() // content-weighted, top 100
//	types.ProfileDebugging()      // title-weighted, top 50
//	types.ProfileExploration()    // breadcrumb-weighted, top 200
package types
