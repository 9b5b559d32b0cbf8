// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package s64 implements a 64-bit storage engine for multi-channel
// time-series experimental data: a file holds up to ~65,000 channels
// sharing a common integer tick time base, each storing waveforms,
// events, markers, or extended markers. The engine supports append-only
// streaming writes, random-access reads by time, retroactive
// save/discard of buffered data, channel deletion and reuse, and
// concurrent access from multiple goroutines.
package s64
