// Package pdfchat embeds the PDF question-answering pipelines in a Go program
// without running the HTTP server.
//
// A Client owns a vector index (Redis or in-process), a document record store
// (SQLite, Postgres or in-memory) and a directory for the uploaded bytes.
// Embedding and completion providers are supplied by the caller.
//
//	client, _ := pdfchat.New(ctx,
//	    pdfchat.WithRedis("localhost:6379", ""),
//	    pdfchat.WithSQLite("file:pdfchat.db"),
//	    pdfchat.WithBlobDir("/var/lib/pdfchat"),
//	    pdfchat.WithEmbedder(myEmbedder),
//	    pdfchat.WithCompleter(myCompleter),
//	)
//	defer client.Close()
//
//	doc, _ := client.Upload(ctx, "handbook.pdf", data)
//	_, _ = client.Process(ctx, doc.ID)
//	answer, _ := client.Ask(ctx, doc.ID, "How many vacation days do I get?")
package pdfchat
