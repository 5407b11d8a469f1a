// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package protocol defines the messages exchanged between the coordinator and
// its workers and the connections that carry them.
//
// The coordinator sends an Assignment tagged with a request token and a reply
// token; the worker answers with a Reply carrying the reply token. For the
// n-th assignment of a run (counting from zero) the tokens are 2n+1 and 2n+2,
// so every token is unique within a run. Stop tells a worker to exit.
//
// Pipe connects two goroutines. StreamConn carries gob-encoded envelopes over
// any reader and writer, such as the stdin and stdout of a subprocess.
package protocol
