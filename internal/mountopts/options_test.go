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

package mountopts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	got := make(map[string]string)
	ParseOptions(got, "rw,allow_other,fsname=fhirfuse")

	assert.Equal(t, map[string]string{
		"rw":          "",
		"allow_other": "",
		"fsname":      "fhirfuse",
	}, got)
}

func TestParseOptions_ValueWithEquals(t *testing.T) {
	got := make(map[string]string)
	ParseOptions(got, "subtype=a=b")

	assert.Equal(t, "a=b", got["subtype"])
}

func TestOptionValue_SetAccumulates(t *testing.T) {
	o := make(OptionValue)
	require.NoError(t, o.Set("rw"))
	require.NoError(t, o.Set("fsname=x, direct_io"))

	assert.Equal(t, OptionValue{
		"rw":        "",
		"fsname":    "x",
		"direct_io": "",
	}, o)
}
