package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/domain/entity"
)

func assertion(text string, ch int, entities ...string) entity.Assertion {
	return entity.Assertion{Text: text, Type: entity.AssertionFact, Confidence: 0.6, Entities: entities, Chapter: entity.IntPtr(ch)}
}

func TestCheckTemporalDeathThenRevival(t *testing.T) {
	as := []entity.Assertion{
		assertion("萧炎在第10章复活", 10, "萧炎"),
		assertion("萧炎在第1章死亡", 1, "萧炎"),
	}
	issues := CheckTemporal(as)
	require.Len(t, issues, 1)
	assert.Equal(t, entity.SeverityHigh, issues[0].Severity)
	assert.Equal(t, 1, *issues[0].First.Chapter)
	assert.Equal(t, 10, *issues[0].Second.Chapter)
	assert.Contains(t, issues[0].Description, "第1章'死亡'")
}

func TestSeverityCounts(t *testing.T) {
	r := CheckConsistency([]entity.Assertion{
		assertion("萧炎在第10章复活", 10, "萧炎"),
		assertion("萧炎在第1章死亡", 1, "萧炎"),
	})
	counts := r.SeverityCounts()
	assert.Equal(t, 1, counts[entity.SeverityHigh])
	assert.Zero(t, counts[entity.SeverityLow])
}

func TestCheckTemporalIgnoresReverseOrder(t *testing.T) {
	as := []entity.Assertion{
		assertion("萧炎在第1章复活", 1, "萧炎"),
		assertion("萧炎在第10章死亡", 10, "萧炎"),
	}
	assert.Empty(t, CheckTemporal(as))
}

func TestCheckCharacter(t *testing.T) {
	tests := []struct {
		name  string
		first string
		next  string
		want  int
	}{
		{"unexplained reversal", "萧炎与纳兰嫣然是盟友", "萧炎视纳兰嫣然为敌人", 1},
		{"explained by misunderstanding", "萧炎与纳兰嫣然是盟友", "因一场误会萧炎视纳兰嫣然为敌人", 0},
		{"betrayal explains itself", "萧炎信任韩枫", "韩枫背叛了萧炎", 0},
		{"no reversal", "萧炎与纳兰嫣然是盟友", "萧炎与纳兰嫣然仍是盟友", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := CheckCharacter([]entity.Assertion{
				assertion(tt.first, 5, "萧炎"),
				assertion(tt.next, 20, "萧炎"),
			})
			require.Len(t, issues, tt.want)
			if tt.want > 0 {
				assert.Equal(t, entity.SeverityMedium, issues[0].Severity)
				assert.Equal(t, entity.ContradictionCharacter, issues[0].Kind)
			}
		})
	}
}

func TestDetectDirectConflict(t *testing.T) {
	d := NewDetector(0, 0)

	far := d.Detect([]entity.Assertion{
		assertion("萧炎是斗者", 3, "萧炎"),
		assertion("萧炎不是斗者", 30, "萧炎"),
	}, [][]entity.Evidence{{{}}, {{}}}, ConsistencyReport{})
	require.Len(t, far, 1)
	assert.Equal(t, entity.ContradictionDirectConflict, far[0].Type)
	assert.Equal(t, entity.ConfidenceMedium, far[0].Confidence)
	assert.Equal(t, 3, *far[0].EarlyChapter)
	assert.Equal(t, 30, *far[0].LateChapter)
	assert.Equal(t, "关于萧炎的描述前后不一致", far[0].Analysis)

	near := d.Detect([]entity.Assertion{
		assertion("萧炎是斗者", 3, "萧炎"),
		assertion("萧炎不是斗者", 8, "萧炎"),
	}, [][]entity.Evidence{{{}}, {{}}}, ConsistencyReport{})
	assert.Empty(t, near)

	noShared := d.Detect([]entity.Assertion{
		assertion("萧炎是斗者", 3, "萧炎"),
		assertion("林动不是斗者", 30, "林动"),
	}, [][]entity.Evidence{{{}}, {{}}}, ConsistencyReport{})
	assert.Empty(t, noShared)
}

func TestDetectWeakSupport(t *testing.T) {
	d := NewDetector(0, 0)
	strong := assertion("萧炎在第1章到达乌坦城", 1, "萧炎")
	strong.Confidence = 0.9
	weak := assertion("萧炎在第2章到达迦南学院", 2, "萧炎")
	weak.Confidence = 0.7

	got := d.Detect([]entity.Assertion{strong, weak}, nil, ConsistencyReport{})
	require.Len(t, got, 1)
	assert.Equal(t, entity.ContradictionWeakSupport, got[0].Type)
	assert.Equal(t, entity.ConfidenceLow, got[0].Confidence)
	assert.Equal(t, 1, *got[0].EarlyChapter)
}

func TestDedupeUniqueTriplesAndOrder(t *testing.T) {
	cs := []entity.Contradiction{
		{Type: entity.ContradictionWeakSupport, Confidence: entity.ConfidenceLow, EarlyChapter: entity.IntPtr(2), LateChapter: entity.IntPtr(2)},
		{Type: entity.ContradictionTemporal, Confidence: entity.ConfidenceHigh, EarlyChapter: entity.IntPtr(9), LateChapter: entity.IntPtr(12), Analysis: "first"},
		{Type: entity.ContradictionTemporal, Confidence: entity.ConfidenceHigh, EarlyChapter: entity.IntPtr(9), LateChapter: entity.IntPtr(12), Analysis: "second"},
		{Type: entity.ContradictionCharacter, Confidence: entity.ConfidenceMedium, EarlyChapter: entity.IntPtr(1), LateChapter: entity.IntPtr(4)},
		{Type: entity.ContradictionTemporal, Confidence: entity.ConfidenceHigh, EarlyChapter: entity.IntPtr(3), LateChapter: entity.IntPtr(12)},
		{Type: entity.ContradictionWeakSupport, Confidence: entity.ConfidenceLow},
		{Type: entity.ContradictionWeakSupport, Confidence: entity.ConfidenceLow},
	}
	got := Dedupe(cs)
	require.Len(t, got, 5)

	seen := make(map[contradictionKey]bool)
	for _, c := range got {
		k := contradictionKey{c.Type, chapterKey(c.EarlyChapter), chapterKey(c.LateChapter)}
		assert.False(t, seen[k], "duplicate triple %v", k)
		seen[k] = true
	}

	assert.Equal(t, 3, *got[0].EarlyChapter)
	assert.Equal(t, 9, *got[1].EarlyChapter)
	assert.Equal(t, "first", got[1].Analysis)
	assert.Equal(t, entity.ConfidenceMedium, got[2].Confidence)
	assert.Equal(t, 2, *got[3].EarlyChapter)
	assert.Nil(t, got[4].EarlyChapter)
}
