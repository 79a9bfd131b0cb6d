// Package mcp implements the Model Context Protocol (MCP) server for MedContext.
//
// The server exposes the drug assistant to MCP clients over stdio:
//   - ask: conversational question answering with per-session pronoun resolution
//   - search_documents: raw passage retrieval (hybrid, dense or sparse)
//   - match_symptoms: TF-IDF ranking of drugs by symptom
//   - compare_drugs: side-by-side comparison of two drugs
//   - list_conditions: every medical condition in the corpus
//   - drugs_for_condition: drugs indicated for one condition
//   - get_status: index statistics and health
//   - suggest_drugs: generated medication suggestions for a symptom description
//   - reset_session: forget the last mentioned drug of a conversation
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout carries protocol messages only. Logs go to stderr.
//
// # Tool: ask
//
//	Request:
//	{
//	  "name": "ask",
//	  "arguments": {"query": "What is sumatriptan used for?", "session_id": "chat-1"}
//	}
//
//	Response:
//	{
//	  "route": "drug_specific",
//	  "drug": "sumatriptan",
//	  "answer": "Sumatriptan is used to treat migraine attacks...",
//	  "follow_ups": ["What is the dosage for sumatriptan?", ...],
//	  "sources": [{"rank": 1, "drug_name": "sumatriptan", ...}]
//	}
//
// A later call in the same session asking "what are its side effects?" is
// answered about sumatriptan and reports "interpreted_as". Without
// session_id the MCP client session is used. That context is dropped when
// the client session is unregistered.
//
// # Error Handling
//
// Invalid arguments are returned as MCPError values:
//
//	-32602: Invalid params (bad limit, mode, missing drug names)
//	-32603: Internal error
//	-32002: Index build in progress
//	-32004: Empty query
//
// Failures of the embedding or language model service are returned as
// tool results with isError set, so clients can show them to the user.
package mcp
