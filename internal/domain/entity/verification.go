package entity

// AssertionType 断言类型
type AssertionType string

const (
	AssertionFact     AssertionType = "fact"
	AssertionRelation AssertionType = "relation"
	AssertionEvent    AssertionType = "event"
)

// Assertion 从答案中抽取的可校验陈述
type Assertion struct {
	Text       string        `json:"text"`
	Type       AssertionType `json:"type"`
	Confidence float64       `json:"confidence"`
	Entities   []string      `json:"entities,omitempty"`
	Chapter    *int          `json:"chapter,omitempty"`
}

// EvidenceSource 证据来源
type EvidenceSource string

const (
	SourceVector  EvidenceSource = "vector"
	SourceKeyword EvidenceSource = "keyword"
	SourceGraph   EvidenceSource = "graph"
)

// Evidence 支撑断言的证据
type Evidence struct {
	Content     string         `json:"content"`
	Source      EvidenceSource `json:"source"`
	Chapter     *int           `json:"chapter,omitempty"`
	Score       float64        `json:"score"`
	Timeliness  float64        `json:"timeliness"`
	Specificity float64        `json:"specificity"`
	Authority   float64        `json:"authority"`
	Overall     float64        `json:"overall"`
}

// ContradictionType 矛盾类型
type ContradictionType string

const (
	ContradictionTemporal       ContradictionType = "temporal"
	ContradictionCharacter      ContradictionType = "character"
	ContradictionDirectConflict ContradictionType = "direct_conflict"
	ContradictionWeakSupport    ContradictionType = "weak_support"
)

var contradictionLabels = map[ContradictionType]string{
	ContradictionTemporal:       "时间线矛盾",
	ContradictionCharacter:      "角色设定矛盾",
	ContradictionDirectConflict: "情节不一致",
	ContradictionWeakSupport:    "证据不足",
}

// Label 中文展示名
func (t ContradictionType) Label() string {
	if l, ok := contradictionLabels[t]; ok {
		return l
	}
	return string(t)
}

// ConfidenceLevel 置信度等级
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "high"
	ConfidenceMedium  ConfidenceLevel = "medium"
	ConfidenceLow     ConfidenceLevel = "low"
	ConfidenceUnknown ConfidenceLevel = "unknown"
)

// Rank 等级排序值，越大越严重
func (c ConfidenceLevel) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Contradiction 检测到的矛盾
type Contradiction struct {
	Type         ContradictionType `json:"type"`
	Confidence   ConfidenceLevel   `json:"confidence"`
	EarlyChapter *int              `json:"early_chapter,omitempty"`
	LateChapter  *int              `json:"late_chapter,omitempty"`
	EarlyText    string            `json:"early_text"`
	LateText     string            `json:"late_text"`
	Analysis     string            `json:"analysis"`
}

// IssueSeverity 一致性问题严重程度
type IssueSeverity string

const (
	SeverityHigh   IssueSeverity = "high"
	SeverityMedium IssueSeverity = "medium"
	SeverityLow    IssueSeverity = "low"
)

// ConsistencyIssue 一致性检查发现的问题
type ConsistencyIssue struct {
	Kind        ContradictionType `json:"kind"`
	Severity    IssueSeverity     `json:"severity"`
	Description string            `json:"description"`
	First       Assertion         `json:"first"`
	Second      Assertion         `json:"second"`
}

// IntPtr 返回整数指针
func IntPtr(v int) *int {
	return &v
}
