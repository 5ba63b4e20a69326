// Package rag answers questions from a local document collection.
//
// Documents are loaded and chunked with langchaingo loaders and splitters,
// embedded, and kept in a VectorStore that satisfies the langchaingo
// vectorstores.VectorStore interface. A SQLiteIndex persists the chunks and
// their vectors so a collection is embedded once.
//
// A Pipeline runs the four traced steps of a question:
//
//	ask (langsmith_rag)
//	├── retrieve_documents   retriever run
//	└── generate_response
//	    └── call_openai      llm run
//
// Each step is wrapped with observability.Traceable, so with tracing set up
// the whole question shows as one trace.
package rag
