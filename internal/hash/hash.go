/*
Copyright © 2026 the overlay authors.
This file is part of overlay.

overlay is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

overlay is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with overlay.  If not, see <http://www.gnu.org/licenses/>.*/

// Package hash fingerprints values so that the outputs of separate
// overlay runs can be compared.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash"
	"hash/fnv"
	"sort"

	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Hash returns a hash key for the specified object.
func Hash(object interface{}) string {
	if s, ok := object.(fmt.Stringer); ok {
		return s.String()
	}
	h := fnv.New128a()
	write(h, object)
	return sum(h)
}

// Unordered returns a hash key for objects that does not depend on
// their order.
func Unordered(objects ...interface{}) string {
	keys := make([]string, len(objects))
	for i, o := range objects {
		h := fnv.New128a()
		write(h, o)
		keys[i] = sum(h)
	}
	sort.Strings(keys)
	h := fnv.New128a()
	for _, k := range keys {
		fmt.Fprintln(h, k)
	}
	return sum(h)
}

func write(h hash.Hash, object interface{}) {
	e := gob.NewEncoder(h)
	if err := e.Encode(object); err == nil {
		return
	}
	// If there is an error (e.g., an unexported or interface field
	// gob cannot encode) use spew instead of gob.
	h.Reset()
	printer.Fprintf(h, "%#v", object)
}

func sum(h hash.Hash) string {
	bKey := h.Sum([]byte{})
	return fmt.Sprintf("%x", bKey[0:h.Size()])
}
