// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package checkpoint persists run progress.
//
// A snapshot file is named <base>_chkNNNNNN after the number of completed
// chains and looks like this:
//
//	# CHECKPOINT STATUS
//	# TOTAL CHAINS: 3
//	# COMPLETED CHAINS: 1
//	echo a &&& echo b
//	echo c
//	#undone
//
// There is one line per chain in definition order: the completed steps joined
// by " &&& ", or "#undone" when no step is complete.
//
// When every chain is done the Store also writes <finish-base>_finished.
package checkpoint
