// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tasks holds the chain data model.
//
// A Task is one shell command. A Chain is an ordered list of tasks parsed from
// a definition line whose steps are separated by "&&&". A Set is the fixed,
// ordered collection of chains for one run.
//
// Tasks only ever move from undone to done. Reconcile marks tasks done from a
// checkpoint prefix, and only where the recorded step at a position equals the
// live step at the same position.
//
// None of the types are safe for concurrent mutation; the coordinator owns them.
package tasks
