package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/image-optimizer/internal/api/handlers/image"
	"github.com/aliskhannn/image-optimizer/internal/middleware"
)

func Setup(h *image.Handler, allowedOrigin string) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware(allowedOrigin))
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())

	r.GET("/health", h.Health)

	r.POST("/convert-to-webp", h.ConvertToWebp)           // upload -> webp
	r.POST("/optimize-image", h.OptimizeImage)            // upload -> recompressed jpeg
	r.POST("/optimize-and-convert", h.OptimizeAndConvert) // upload -> jpeg -> webp

	return r
}
