// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "math"

// DocID is a dense, zero-based identifier of a document within a segment.
type DocID = int32

// NoMoreDocs is the sentinel returned by doc-id iterators once they are
// exhausted. It is larger than any valid DocID.
const NoMoreDocs DocID = math.MaxInt32
