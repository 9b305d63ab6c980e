// Package conversation orchestrates message turns.
//
// # Overview
//
// The Orchestrator sits between the websocket gateway and the storage,
// context, and generation layers. It owns the lifecycle of a turn: persist
// the user message, assemble context, generate a response, persist the
// result, and update memory, emitting events to the client as it goes.
//
// # Processing states
//
// Each conversation moves through a small state machine per turn:
//
//	idle -> receiving -> context_building -> generating -> persisting -> idle
//
// Any mid-turn error moves the conversation to failed, which emits a
// client-safe error event and returns to idle. Clients never see internal
// error details.
//
// # Serialization
//
// Turns for the same conversation are processed one at a time in arrival
// order. Each conversation gets a lane: a goroutine that drains a FIFO
// queue of pending turns and retires when the queue is empty. Turns for
// different conversations run in parallel.
//
// # Events
//
// Processing emits events through a Sink supplied at submission:
//
//   - message_received: a message (user or assistant) became durable
//   - typing_indicator: generation started or finished
//   - error: the turn failed
//
// Sinks must not block. Delivery to a disconnected client is dropped;
// the turn itself always runs to completion on a detached context.
package conversation
