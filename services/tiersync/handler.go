package tiersync

import (
	"net/http"

	"smallbiznis-loyaltycore/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// HTTPModule mounts job lookups on the ops router.
var HTTPModule = fx.Module("tiersync.http",
	fx.Invoke(RegisterRoutes),
)

func RegisterRoutes(r *gin.Engine, svc *Service) {
	g := r.Group("/tier-sync")
	g.GET("/companies", listCompanies(svc))
	g.GET("/jobs/:id", getJob(svc))
}

func listCompanies(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := svc.Companies(c.Request.Context())
		if err != nil {
			_ = c.Error(errutil.Internal("failed to list companies", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"companies": ids})
	}
}

func getJob(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := svc.GetJob(c.Request.Context(), c.Param("id"))
		if err != nil {
			_ = c.Error(errutil.Internal("failed to load job", err))
			return
		}
		if job == nil {
			_ = c.Error(errutil.NotFound("tier sync job not found", nil))
			return
		}
		c.JSON(http.StatusOK, job)
	}
}
