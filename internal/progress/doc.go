// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries run events from the coordinator to observers such
// as the terminal user interface. Reporting never blocks the coordinator:
// events that cannot be delivered are dropped.
package progress
