// Package entity 定义领域实体
package entity

import (
	"errors"
	"fmt"
	"strings"
)

// RelationType 人物关系类型
type RelationType string

const (
	RelationMentor       RelationType = "师徒"
	RelationAlly         RelationType = "盟友"
	RelationAdversary    RelationType = "敌对"
	RelationKin          RelationType = "亲属"
	RelationRomantic     RelationType = "恋人"
	RelationSameFaction  RelationType = "同门"
	RelationNeutral      RelationType = "中立"
	RelationCooccurrence RelationType = "共现"
)

// AllRelationTypes 按提示词中的展示顺序列出全部关系类型
var AllRelationTypes = []RelationType{
	RelationMentor,
	RelationAlly,
	RelationAdversary,
	RelationKin,
	RelationRomantic,
	RelationSameFaction,
	RelationNeutral,
	RelationCooccurrence,
}

var relationDescriptions = map[RelationType]string{
	RelationMentor:       "师父与徒弟，传授功法或知识",
	RelationAlly:         "并肩作战、互相扶持的伙伴",
	RelationAdversary:    "对立、仇视或正面冲突",
	RelationKin:          "血缘或婚姻形成的家族关系",
	RelationRomantic:     "爱慕、恋爱或婚配",
	RelationSameFaction:  "同一门派、宗族或组织的成员",
	RelationNeutral:      "相识但无明显立场倾向",
	RelationCooccurrence: "仅同时出现，无法判断具体关系",
}

// ErrUnknownRelationType 关系标签不在闭集内
var ErrUnknownRelationType = errors.New("unknown relation type")

// ParseRelationType 将模型输出的标签解析为关系类型
func ParseRelationType(label string) (RelationType, error) {
	s := strings.TrimSpace(label)
	for _, t := range AllRelationTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return RelationCooccurrence, fmt.Errorf("%w: %q", ErrUnknownRelationType, s)
}

// Description 关系类型的释义
func (t RelationType) Description() string {
	return relationDescriptions[t]
}

// Valid 是否为已知关系类型
func (t RelationType) Valid() bool {
	_, ok := relationDescriptions[t]
	return ok
}
