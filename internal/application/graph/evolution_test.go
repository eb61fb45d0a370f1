package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"novel-rag-engine/internal/domain/entity"
)

func TestSegmentCount(t *testing.T) {
	assert.Equal(t, 2, SegmentCount(0))
	assert.Equal(t, 2, SegmentCount(50))
	assert.Equal(t, 3, SegmentCount(51))
	assert.Equal(t, 3, SegmentCount(200))
	assert.Equal(t, 5, SegmentCount(201))
}

func TestSplitSegments(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}}, SplitSegments([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
	assert.Equal(t,
		[][]int{{1}, {100}, {150}, {200}, {250, 280, 300}},
		SplitSegments([]int{1, 100, 150, 200, 250, 280, 300}),
	)
	assert.Equal(t, [][]int{{7}}, SplitSegments([]int{7}))
	assert.Nil(t, SplitSegments(nil))
}

func TestSampleChapters(t *testing.T) {
	assert.Equal(t, []int{1, 6, 10}, SampleChapters([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 3))
	assert.Equal(t, []int{4, 9}, SampleChapters([]int{4, 9}, 3))
	assert.Equal(t, []int{1, 4, 6, 7, 10}, SampleChapters([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 5))
}

func TestCollapseTrajectory(t *testing.T) {
	in := []entity.Checkpoint{
		{Chapter: 1, Type: entity.RelationNeutral, Confidence: 0.6},
		{Chapter: 20, Type: entity.RelationNeutral, Confidence: 0.7},
		{Chapter: 40, Type: entity.RelationMentor, Confidence: 0.9},
		{Chapter: 40, Type: entity.RelationAlly, Confidence: 0.9},
		{Chapter: 80, Type: entity.RelationMentor, Confidence: 0.8},
	}
	assert.Equal(t, []entity.Checkpoint{
		{Chapter: 1, Type: entity.RelationNeutral, Confidence: 0.6},
		{Chapter: 40, Type: entity.RelationMentor, Confidence: 0.9},
	}, CollapseTrajectory(in))
}
