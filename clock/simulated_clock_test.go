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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSimulatedClock_StandsStillUntilMoved(t *testing.T) {
	start := time.Unix(1000, 0)
	sc := NewSimulatedClock(start)

	assert.Equal(t, start, sc.Now())
	assert.Equal(t, start, sc.Now())

	sc.AdvanceTime(3 * time.Second)
	assert.Equal(t, start.Add(3*time.Second), sc.Now())

	later := time.Unix(5000, 0)
	sc.SetTime(later)
	assert.Equal(t, later, sc.Now())
}
