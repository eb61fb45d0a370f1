package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// 字段名
const (
	fieldID          = "id"
	fieldVector      = "vector"
	fieldChapter     = "chapter"
	fieldHasDialogue = "has_dialogue"
	fieldText        = "text_content"
)

var outputFields = []string{fieldID, fieldChapter, fieldHasDialogue, fieldText}

// ChunkSchema 正文片段集合 Schema，向量维度在首次写入时确定
func ChunkSchema(collection string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: collection,
		Description:    "Novel text chunks for semantic search",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     fieldVector,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dim),
				},
			},
			{
				Name:     fieldChapter,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     fieldHasDialogue,
				DataType: entity.FieldTypeBool,
			},
			{
				Name:     fieldText,
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}
