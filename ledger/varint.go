// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledger

import "errors"

// EncodeVarInt encodes num as a CIP-19 style variable-length integer:
// big-endian 7-bit groups, continuation flag (0x80) set on every byte
// but the last. Used by the UTxO module to encode the output index in
// its store keys.
func EncodeVarInt(num uint64) []byte {
	length := 7
	for length != 70 && (num>>uint(length)) != 0 {
		length += 7
	}

	var out []byte
	for length > 7 {
		length -= 7
		out = append(out, byte(num>>uint(length))|0x80)
	}
	out = append(out, byte(num&0x7f))
	return out
}

// ErrVarIntTruncated is returned when the input ends before a
// terminating (non-continuation) byte is found.
var ErrVarIntTruncated = errors.New("ledger: truncated varint")

// DecodeVarInt decodes a CIP-19 variable-length integer from the
// start of data, returning the value and the number of bytes
// consumed.
func DecodeVarInt(data []byte) (uint64, int, error) {
	var value uint64
	for i, b := range data {
		value = (value << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, ErrVarIntTruncated
}
