// Package mailbox implements the in-process router correlating outbound
// requests to isolated worker units with their eventual responses.
//
// Each registered agent owns an explicit inbound channel held in a map from
// agent id to channel — no stringly-typed event names — so fan-out and
// fan-in stay auditable. Send blocks the caller on a per-call response
// channel until Resolve fulfills it; the mailbox itself imposes no timeout,
// the caller layer bounds the wait where needed.
package mailbox
