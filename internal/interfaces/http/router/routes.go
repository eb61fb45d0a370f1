package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers) {
	corpora := v1.Group("/corpora/:corpus")
	{
		// 问答与检索调试
		corpora.POST("/ask", h.QA.Ask)
		corpora.POST("/search", h.QA.Search)

		// 图谱查询
		g := corpora.Group("/graph")
		{
			g.GET("/stats", h.Graph.Stats)
			g.GET("/relation", h.Graph.RelationAt)
			g.GET("/evolution", h.Graph.Evolution)
			g.GET("/path", h.Graph.Path)
			g.GET("/characters", h.Graph.MainCharacters)
			g.GET("/entities", h.Graph.EntitiesInRange)
			g.GET("/entities/:name/relationships", h.Graph.Relationships)
			g.GET("/entities/:name/neighbors", h.Graph.Neighbors)
			g.GET("/chapters/:chapter/importance", h.Graph.ChapterImportance)
			g.DELETE("", h.Graph.Delete)

			if h.Jobs != nil {
				g.POST("/rebuild", h.Jobs.Rebuild)
			}
		}
	}

	if h.Jobs != nil {
		v1.GET("/jobs/:jid", h.Jobs.GetJob)
	}
}
