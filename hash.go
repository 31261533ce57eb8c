// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: © 2026 turtle.io contributors

package turtle

import (
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Seed is the mmh3 seed (spec §6 "seed: integer seed for mmh3"); cmd/turtled overwrites it
// from configuration before the server starts accepting connections.
var Seed uint32 = 0

// mmh3 hashes the pipe-joined parts with murmur3 (the "mmh3 hash primitive" spec §1 scopes
// out as an external collaborator; spaolacci/murmur3 is the concrete binding, spec §2/§8).
func mmh3(parts ...string) string {
	h := murmur3.New64WithSeed(Seed)
	h.Write([]byte(strings.Join(parts, "|")))
	return strconv.FormatUint(h.Sum64(), 16)
}

// hashIdentity hashes a handler's registration-site identity for the blacklist (spec §9
// "Handler identity for blacklist": a stable identity instead of the source's fn.toString()).
func hashIdentity(identity string) uint64 {
	h := murmur3.New64WithSeed(Seed)
	h.Write([]byte(identity))
	return h.Sum64()
}
