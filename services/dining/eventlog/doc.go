// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
// Package eventlog implements the shared, strictly ordered event log.
//
// # Overview
//
// The log has three parts that live in the run directory and output path:
//
//   - Counter: an 8-byte file mapped MAP_SHARED by every process. It holds
//     the last sequence number handed out.
//   - Log lock: one named resource from package lock ("log").
//   - Sink: the output file, opened O_APPEND by every writer.
//
// Record takes the log lock, advances the counter, writes exactly one line
// "<seq>: <message>" and releases the lock. Because the counter and the
// write sit behind the same lock, sequence numbers are gapless, unique and
// appear in the file in increasing order.
//
// The package also parses and verifies finished logs (ParseLine, ReadFile,
// Verify).
package eventlog
