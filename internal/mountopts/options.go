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

// Package mountopts parses the repeated "-o name[=value]" mount option flag
// into the map that fuse.MountConfig.Options expects.
package mountopts

import (
	"strings"

	"github.com/spf13/pflag"
)

// ParseOptions splits a comma-separated "-o" argument (e.g.
// "rw,allow_other,fsname=fhirfuse") into individual options and merges them
// into dst. A bare name (no "=") is stored with an empty value.
func ParseOptions(dst map[string]string, s string) {
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		if i := strings.IndexByte(pair, '='); i >= 0 {
			dst[pair[:i]] = pair[i+1:]
		} else {
			dst[pair] = ""
		}
	}
}

// OptionValue adapts a map[string]string to pflag.Value so "-o" can be
// repeated on the command line, accumulating into the same map.
type OptionValue map[string]string

var _ pflag.Value = OptionValue(nil)

func (o OptionValue) String() string {
	var b strings.Builder
	first := true
	for k, v := range o {
		if !first {
			b.WriteByte(',')
		}
		first = false

		b.WriteString(k)
		if v != "" {
			b.WriteByte('=')
			b.WriteString(v)
		}
	}

	return b.String()
}

func (o OptionValue) Set(s string) error {
	ParseOptions(o, s)
	return nil
}

func (o OptionValue) Type() string { return "stringToString" }
