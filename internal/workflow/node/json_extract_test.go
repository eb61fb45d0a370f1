package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"relation_type":"师徒"}`, `{"relation_type":"师徒"}`},
		{"fenced", "```json\n{\"relation_type\":\"盟友\"}\n```", `{"relation_type":"盟友"}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounded", `判断如下：{"a":1} 以上`, `{"a":1}`},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSONObject(tc.in))
		})
	}
}

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "萧炎", TruncateByRunes("萧炎与药老", 2))
	assert.Equal(t, "萧炎", TruncateByRunes("萧炎", 5))
	assert.Equal(t, "", TruncateByRunes("萧炎", 0))
}
