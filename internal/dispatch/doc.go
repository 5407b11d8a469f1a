// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package dispatch distributes chains across workers.
//
// Rank 0 is the coordinator. It runs a Scheduler that hands one chain at a
// time to each idle worker, records every reply, writes a checkpoint after
// each completed chain and stops the workers once the set is finished. Ranks
// 1 to Size-1 run a Worker. Workers live either in goroutines (LocalPool) or
// in subprocesses of the same binary (ProcessPool).
//
// With a single rank there is nobody to delegate to, and SerialRunner runs
// the chains in the coordinator itself.
package dispatch
