package nlp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/domain/service"
)

func TestExtractEntities(t *testing.T) {
	var got nerRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entities":[
			["萧炎","PER",0,2],
			{"text":"药老","type":"PERSON"},
			["萧炎","NR"],
			["乌坦城","LOC"],
			["云岚宗","ORG"],
			["第一章","PER"],
			["“萧炎","PER"],
			["斗气","TERM"]
		]}`))
	}))
	defer srv.Close()

	c := NewClient(&config.NERConfig{Enabled: true, Endpoint: srv.URL, Timeout: time.Second})
	set := c.ExtractEntities(context.Background(), "萧炎在乌坦城见到了药老。")

	assert.Equal(t, "ner", got.Tasks)
	assert.Equal(t, "萧炎在乌坦城见到了药老。", got.Text)
	assert.Equal(t, []string{"萧炎", "药老"}, set.Characters)
	assert.Equal(t, []string{"乌坦城"}, set.Locations)
	assert.Equal(t, []string{"云岚宗"}, set.Organizations)
}

func TestExtractEntitiesDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(&config.NERConfig{Endpoint: srv.URL})
	assert.True(t, c.ExtractEntities(context.Background(), "萧炎").Empty())
	assert.Equal(t, service.EntitySet{}, c.ExtractEntities(context.Background(), "   "))

	unreachable := NewClient(&config.NERConfig{Endpoint: "http://127.0.0.1:1/ner", Timeout: 100 * time.Millisecond})
	assert.True(t, unreachable.ExtractEntities(context.Background(), "林动").Empty())
}

func TestCleanEntityName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"萧炎", true},
		{"炎", false},
		{"123", false},
		{"……", false},
		{"第三十章", false},
		{"Chapter 12", false},
		{"卷一", false},
		{"作者君", false},
		{"求月票", false},
		{"迦南学院内院长老团首席", false},
		{"‘药老", false},
		{" 萧薰儿 ", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, ok := CleanEntityName(tt.in)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestWindowsSplitAtSentenceEnd(t *testing.T) {
	text := strings.Repeat("萧炎修炼。", 3) + "药老"
	parts := windows(text, 12)
	require.Len(t, parts, 2)
	assert.Equal(t, "萧炎修炼。萧炎修炼。", parts[0])
	assert.Equal(t, "萧炎修炼。药老", parts[1])

	assert.Equal(t, []string{"林动"}, windows("林动", 512))
	assert.Empty(t, windows("   ", 4))
}

func TestExtractEntitiesCallsPerWindow(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "busy", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"entities":[["林动","PER"]]}`))
	}))
	defer srv.Close()

	c := NewClient(&config.NERConfig{Endpoint: srv.URL})
	set := c.ExtractEntities(context.Background(), strings.Repeat("林动修炼了一整夜。", 80))
	assert.Greater(t, calls, 1)
	assert.Equal(t, []string{"林动"}, set.Characters)
}
