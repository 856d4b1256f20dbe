// Package peerchat provides the server-side core of a one-to-one chat system:
// durable message storage, best-effort live delivery and history queries.
//
// It works as a library embedded in your own service, and as a standalone
// server (cmd/peerchat-server) with a REST API and WebSocket live channels.
//
// # Components
//
//   - MessageStore: validates, timestamps and persists messages; answers
//     pair queries in (createdAt, id) order
//   - Gateway: persists every send through the store, then pushes the stored
//     message at most once to the recipient's live channel if one is registered
//   - HistoryService: returns the full two-way conversation between the caller
//     and a peer, optionally only messages newer than a timestamp
//   - client.Conversation (package client): merges optimistic local sends,
//     live pushes and fetched history into one duplicate-free ordered view
//
// # Delivery Model
//
// Persistence always happens before delivery, so the history of a pair is a
// superset of everything that was ever pushed. A push that cannot happen
// (recipient offline, slow or gone) is not an error for the sender; the
// recipient picks the message up on its next history fetch. There is no
// retry queue and no read receipts.
//
//  1. SEND
//     Gateway.Send → MessageStore.Append (assign id + createdAt)
//     → return the stored message to the sender
//
//  2. PUSH (best effort)
//     ConnectionRegistry lookup → Channel.Push with a bounded timeout
//     → NotificationService records delivered or missed
//
//  3. PULL
//     HistoryService.GetHistory → MessageStore.Query(pair) in order
//
// # Quick Start
//
//	db, _ := sql.Open("sqlite3", "chat.db")
//	if err := peerchat.ApplyMigrations(ctx, db, "sqlite3", ""); err != nil {
//	    log.Fatal(err)
//	}
//	repos := relica.NewRepositories(db, "sqlite3")
//
//	store, _ := peerchat.NewMessageStore(
//	    peerchat.WithStoreRepository(repos.Message),
//	    peerchat.WithStoreLogger(logger),
//	)
//	gateway, _ := peerchat.NewGateway(
//	    peerchat.WithMessageStore(store),
//	    peerchat.WithLogger(logger),
//	)
//	history, _ := peerchat.NewHistoryService(
//	    peerchat.WithHistoryStore(store),
//	    peerchat.WithHistoryLogger(logger),
//	)
//
//	msg, err := gateway.Send(ctx, "alice", "bob", "hi")
//	msgs, err := history.GetHistory(ctx, "bob", "alice")
//
// # Storage
//
// Repositories are provided for MySQL, PostgreSQL and SQLite (adapters/relica,
// schema applied by ApplyMigrations), Redis (adapters/redis) and process
// memory (adapters/memory). The SQL table prefix defaults to "peerchat_".
package peerchat
